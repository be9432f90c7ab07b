package shcClient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/oauth2"

	"github.com/zabeloliver/smarthome-bridge/shc-api/shcJsonRpc"
	"github.com/zabeloliver/smarthome-bridge/shc-api/shcStructs"
)

const ClientId = "smarthome-bridge"

var ErrNotLoggedIn = errors.New("not logged in")

type ShcApiClient struct {
	Host           string
	base           *http.Client
	client         *http.Client
	oauth          *oauth2.Config
	pollingId      string
	pollingTimeout int
	retryPause     time.Duration
	shcApiUrl      string
	shcPollUrl     string
	logger         *zap.SugaredLogger
	stopPolling    context.CancelFunc

	mu      sync.RWMutex
	rooms   []shcStructs.Room
	devices []shcStructs.Device
}

func NewShcApiClient(host string, logger *zap.SugaredLogger) *ShcApiClient {
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	host = strings.TrimSuffix(host, "/")

	timeout := 30
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				// the controller ships a self-signed certificate
				InsecureSkipVerify: true,
			},
			TLSHandshakeTimeout: 10 * time.Second,
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
		},
		Timeout: time.Duration(timeout+5) * time.Second,
	}

	return &ShcApiClient{
		Host:           host,
		base:           httpClient,
		shcApiUrl:      host + "/smarthome",
		shcPollUrl:     host + "/remote/json-rpc",
		pollingTimeout: timeout,
		retryPause:     5 * time.Second,
		logger:         logger,
		oauth: &oauth2.Config{
			ClientID: ClientId,
			Endpoint: oauth2.Endpoint{
				TokenURL:  host + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func (c *ShcApiClient) SetPollingTimeout(timeout int) {
	c.pollingTimeout = timeout
	c.base.Timeout = time.Duration(timeout+5) * time.Second
	if c.client != nil {
		c.client.Timeout = c.base.Timeout
	}
}

func (c *ShcApiClient) SetRetryPause(d time.Duration) {
	c.retryPause = d
}

// Login exchanges the user credentials for a token. All further requests
// are sent through a client that refreshes the token on its own.
func (c *ShcApiClient) Login(ctx context.Context, user, password string) error {
	c.logger.Infof("Logging in to %s as %s", c.Host, user)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	token, err := c.oauth.PasswordCredentialsToken(ctx, user, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	client := c.oauth.Client(ctx, token)
	client.Timeout = c.base.Timeout
	c.client = client
	return nil
}

func (c *ShcApiClient) do(req *http.Request) ([]byte, error) {
	if c.client == nil {
		return nil, ErrNotLoggedIn
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, res.StatusCode)
	}
	return body, nil
}

func (c *ShcApiClient) getResourcePath(ctx context.Context, path string) ([]byte, error) {
	u, err := url.JoinPath(c.shcApiUrl, path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *ShcApiClient) GetRooms(ctx context.Context) ([]shcStructs.Room, error) {
	var rooms []shcStructs.Room
	body, err := c.getResourcePath(ctx, "rooms")
	if err != nil {
		return nil, fmt.Errorf("get rooms: %w", err)
	}
	if err := json.Unmarshal(body, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	c.logger.Info("Get List of Rooms: ", len(rooms))
	return rooms, nil
}

func (c *ShcApiClient) GetDevices(ctx context.Context) ([]shcStructs.Device, error) {
	var devices []shcStructs.Device
	body, err := c.getResourcePath(ctx, "devices")
	if err != nil {
		return nil, fmt.Errorf("get devices: %w", err)
	}
	if err := json.Unmarshal(body, &devices); err != nil {
		return nil, fmt.Errorf("decode devices: %w", err)
	}
	c.logger.Info("Get List of Devices: ", len(devices))
	return devices, nil
}

// Init enumerates rooms and devices once and keeps them in controller order.
func (c *ShcApiClient) Init(ctx context.Context) error {
	rooms, err := c.GetRooms(ctx)
	if err != nil {
		return err
	}
	devices, err := c.GetDevices(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.rooms = rooms
	c.devices = devices
	c.mu.Unlock()
	return nil
}

// Devices returns a snapshot of all known devices.
func (c *ShcApiClient) Devices() []shcStructs.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.devices)
}

func (c *ShcApiClient) GetRoomById(id string) (shcStructs.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := slices.IndexFunc(c.rooms, func(r shcStructs.Room) bool { return r.Id == id })
	if idx == -1 {
		return shcStructs.Room{}, false
	}
	return c.rooms[idx], true
}

func (c *ShcApiClient) GetDeviceById(id string) (shcStructs.Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := c.deviceIndex(id)
	if idx == -1 {
		return shcStructs.Device{}, false
	}
	return c.devices[idx], true
}

func (c *ShcApiClient) deviceIndex(id string) int {
	return slices.IndexFunc(c.devices, func(d shcStructs.Device) bool { return d.Id == id })
}

// SetState sends a new value to the device and returns the value the
// controller actually applied, which may differ from the requested one.
func (c *ShcApiClient) SetState(ctx context.Context, id string, value any) (any, error) {
	payload, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		return nil, err
	}
	u, err := url.JoinPath(c.shcApiUrl, "devices", id, "state")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("set state of %s: %w", id, err)
	}
	var state shcStructs.DeviceState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("decode state of %s: %w", id, err)
	}

	c.mu.Lock()
	if idx := c.deviceIndex(id); idx != -1 {
		if state.PropertyType == "" {
			state.PropertyType = c.devices[idx].State.PropertyType
		}
		c.devices[idx].State = state
	}
	c.mu.Unlock()
	return state.Value, nil
}

func (c *ShcApiClient) JsonRpcRequest(ctx context.Context, request shcJsonRpc.JsonRPC) (shcJsonRpc.JsonRPCResult, error) {
	rpc := shcJsonRpc.JsonRPCResult{}
	payload, err := json.Marshal(request)
	if err != nil {
		return rpc, err
	}
	c.logger.Debug("JsonRpc Request: ", string(payload))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.shcPollUrl, bytes.NewReader(payload))
	if err != nil {
		return rpc, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return rpc, err
	}
	if err := json.Unmarshal(body, &rpc); err != nil {
		return rpc, err
	}
	if rpc.Error.Code != 0 {
		return rpc, rpc.Error
	}
	return rpc, nil
}

func (c *ShcApiClient) Subscribe(ctx context.Context) error {
	c.logger.Info("Subscribing to Polling")
	result, err := c.JsonRpcRequest(ctx, shcJsonRpc.NewRequest(shcJsonRpc.MethodSubscribe, "com/smarthome/remote/*", nil))
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.mu.Lock()
	c.pollingId = result.Result
	c.mu.Unlock()
	c.logger.Info("Subscription Polling ID: ", result.Result)
	return nil
}

func (c *ShcApiClient) Unsubscribe(ctx context.Context) error {
	c.logger.Info("Unsubscribing from Polling")
	id := c.PollingId()
	if id == "" {
		c.logger.Warn("Cannot unsubscribe without Polling ID")
		return nil
	}
	result, err := c.JsonRpcRequest(ctx, shcJsonRpc.NewRequest(shcJsonRpc.MethodUnsubscribe, id))
	c.mu.Lock()
	c.pollingId = ""
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	c.logger.Info("Unsubscribe Response: ", result)
	return nil
}

func (c *ShcApiClient) PollingId() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pollingId
}

func (c *ShcApiClient) pollOnce(ctx context.Context) (shcJsonRpc.PollResult, error) {
	results := shcJsonRpc.PollResult{}
	payload, err := json.Marshal(shcJsonRpc.NewRequest(shcJsonRpc.MethodLongPoll, c.PollingId(), c.pollingTimeout))
	if err != nil {
		return results, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.shcPollUrl, bytes.NewReader(payload))
	if err != nil {
		return results, err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req)
	if err != nil {
		return results, err
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return results, fmt.Errorf("%w: %s", err, body)
	}
	return results, nil
}

// dispatch applies an event to the cached device and hands a snapshot to onChange.
// Events that cannot be attributed to a known device end up in onDebug.
func (c *ShcApiClient) dispatch(event shcStructs.DeviceEvent, onChange func(shcStructs.Device), onDebug func(any)) {
	c.mu.Lock()
	idx := c.deviceIndex(event.DeviceId)
	if idx == -1 {
		c.mu.Unlock()
		if onDebug != nil {
			onDebug(event)
		}
		return
	}
	err := c.devices[idx].ApplyEvent(event)
	snapshot := c.devices[idx]
	c.mu.Unlock()

	if err != nil {
		c.logger.Error(err)
		return
	}
	if onChange != nil {
		onChange(snapshot)
	}
}

// Poll starts the long polling loop in the background. It stops when ctx is
// cancelled or Shutdown is called.
func (c *ShcApiClient) Poll(ctx context.Context, onChange func(shcStructs.Device), onDebug func(any)) {
	c.logger.Info("Starting Long Polling")
	ctx, c.stopPolling = context.WithCancel(ctx)
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			results, err := c.pollOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error(err)
				// wait some time before trying a new request
				c.pause(ctx)
				continue
			}

			if results.Error.Code != 0 {
				c.logger.Error(results.Error)
				c.logger.Error("Polling ID was rejected by the controller. Will resubscribe.")
				c.pause(ctx)
				if err := c.Subscribe(ctx); err != nil {
					c.logger.Error(err)
				}
				continue
			}
			// an empty result means the poll timed out without event
			for _, event := range results.Result {
				c.dispatch(event, onChange, onDebug)
			}
		}
	}()
}

func (c *ShcApiClient) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.retryPause):
	}
}

// Shutdown stops polling and releases the session.
func (c *ShcApiClient) Shutdown(ctx context.Context) error {
	if c.stopPolling != nil {
		c.stopPolling()
	}
	var err error
	if c.client != nil {
		err = c.Unsubscribe(ctx)
		c.client.CloseIdleConnections()
	}
	c.base.CloseIdleConnections()
	return err
}
