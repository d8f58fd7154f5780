package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/randrd/internal/backend"
	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client for the default socket
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for an explicit socket path.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    15 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends cmd with an optional payload and decodes the response data
// into out when out is non-nil.
func (c *Client) call(cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload asks the daemon to reload its config, optionally reapplying the
// layout.
func (c *Client) Reload(apply bool) error {
	return c.call(CommandReload, ReloadPayload{Apply: apply}, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetOutputs retrieves the connected outputs.
func (c *Client) GetOutputs() (*OutputsData, error) {
	var data OutputsData
	if err := c.call(CommandGetOutputs, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMonitors retrieves the logical monitor layout.
func (c *Client) GetMonitors() (*MonitorsData, error) {
	var data MonitorsData
	if err := c.call(CommandGetMonitors, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Reread makes the daemon reread the hardware state and returns the
// resulting outputs.
func (c *Client) Reread() (*OutputsData, error) {
	var data OutputsData
	if err := c.call(CommandReread, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Apply applies plan with method. A nil plan applies the daemon's layout
// policy.
func (c *Client) Apply(method backend.Method, plan *display.Plan) (*ApplyData, error) {
	var data ApplyData
	payload := ApplyPayload{Method: method.String(), Plan: plan}
	if err := c.call(CommandApply, payload, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Confirm keeps a temporary configuration.
func (c *Client) Confirm() (*ConfirmData, error) {
	var data ConfirmData
	if err := c.call(CommandConfirm, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Revert restores the configuration before a temporary apply.
func (c *Client) Revert() (*ConfirmData, error) {
	var data ConfirmData
	if err := c.call(CommandRevert, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) SetGamma(p GammaPayload) error {
	return c.call(CommandSetGamma, p, nil)
}

func (c *Client) SetPowerSave(mode backend.PowerSaveMode) error {
	return c.call(CommandSetPowerSave, PowerSavePayload{Mode: mode.String()}, nil)
}

func (c *Client) SetMaxBPC(output string, bpc int) error {
	return c.call(CommandSetMaxBPC, OutputValuePayload{Output: output, Value: bpc}, nil)
}

func (c *Client) SetBacklight(output string, value int) error {
	return c.call(CommandSetBacklight, OutputValuePayload{Output: output, Value: value}, nil)
}

func (c *Client) SetCTM(output string, ctm backend.CTM) error {
	return c.call(CommandSetCTM, CTMPayload{Output: output, Matrix: ctm}, nil)
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
