package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the engine status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Stagecue.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scenes lists every scene with its cues.
func (c *Client) Scenes() (*ScenesResponse, error) {
	var resp ScenesResponse
	if err := c.client.Call("Stagecue.Scenes", ScenesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GoLive fires the selected cue.
func (c *Client) GoLive() (*GoResponse, error) {
	var resp GoResponse
	if err := c.client.Call("Stagecue.GoLive", GoRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop stops playback on one deck, or both when deck is empty.
func (c *Client) Stop(deck string) (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Stagecue.Stop", StopRequest{Deck: deck}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopAll is the emergency stop.
func (c *Client) StopAll() (*StopAllResponse, error) {
	var resp StopAllResponse
	if err := c.client.Call("Stagecue.StopAll", StopAllRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TogglePause pauses or resumes the running deck.
func (c *Client) TogglePause() (*PauseResponse, error) {
	var resp PauseResponse
	if err := c.client.Call("Stagecue.TogglePause", PauseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Seek moves the running deck to an absolute media offset.
func (c *Client) Seek(offsetSeconds float64) (*SeekResponse, error) {
	var resp SeekResponse
	if err := c.client.Call("Stagecue.Seek", SeekRequest{OffsetSeconds: offsetSeconds}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Volume applies a discrete volume step.
func (c *Client) Volume(step string) (*VolumeResponse, error) {
	var resp VolumeResponse
	if err := c.client.Call("Stagecue.Volume", VolumeRequest{Step: step}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Blackout forces operator blackout on or off.
func (c *Client) Blackout(on bool) (*BlackoutResponse, error) {
	var resp BlackoutResponse
	if err := c.client.Call("Stagecue.Blackout", BlackoutRequest{On: on}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SelectScene moves the scene cursor.
func (c *Client) SelectScene(index int) (*SelectResponse, error) {
	var resp SelectResponse
	if err := c.client.Call("Stagecue.SelectScene", SelectSceneRequest{Index: index}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SelectCue moves the cue cursor within the active scene.
func (c *Client) SelectCue(index int) (*SelectResponse, error) {
	var resp SelectResponse
	if err := c.client.Call("Stagecue.SelectCue", SelectCueRequest{Index: index}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NextCue advances the cue cursor.
func (c *Client) NextCue() (*SelectResponse, error) {
	var resp SelectResponse
	if err := c.client.Call("Stagecue.NextCue", NextCueRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PrevCue moves the cue cursor back.
func (c *Client) PrevCue() (*SelectResponse, error) {
	var resp SelectResponse
	if err := c.client.Call("Stagecue.PrevCue", PrevCueRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ShowSave persists the current show under a name.
func (c *Client) ShowSave(name string) (*ShowAckResponse, error) {
	var resp ShowAckResponse
	if err := c.client.Call("Stagecue.ShowSave", ShowSaveRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ShowLoad replaces the current show with a stored one.
func (c *Client) ShowLoad(name string) (*ShowAckResponse, error) {
	var resp ShowAckResponse
	if err := c.client.Call("Stagecue.ShowLoad", ShowLoadRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ShowList lists stored shows.
func (c *Client) ShowList() (*ShowListResponse, error) {
	var resp ShowListResponse
	if err := c.client.Call("Stagecue.ShowList", ShowListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ShowDelete removes a stored show.
func (c *Client) ShowDelete(name string) (*ShowDeleteResponse, error) {
	var resp ShowDeleteResponse
	if err := c.client.Call("Stagecue.ShowDelete", ShowDeleteRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ShowExport serializes the current show to JSON.
func (c *Client) ShowExport() (*ShowExportResponse, error) {
	var resp ShowExportResponse
	if err := c.client.Call("Stagecue.ShowExport", ShowExportRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ShowImport replaces the current show with a JSON snapshot.
func (c *Client) ShowImport(snapshot []byte) (*ShowAckResponse, error) {
	var resp ShowAckResponse
	if err := c.client.Call("Stagecue.ShowImport", ShowImportRequest{Snapshot: snapshot}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Stagecue.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
