// Package transport is the JSON/HTTP seam between chord.Node and the
// wire: HTTPTransport implements chord.Transport for outbound RPCs and
// Server implements the inbound endpoint table (§6).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"chordring/internal/chord"
)

// HTTPTransport dials peers over JSON/HTTP. It keeps the teacher's
// fast/slow client split: maintenance RPCs (successor/predecessor/
// notify/ping/routing) are latency-sensitive and retry briefly; key
// transfer and departure-path RPCs favor completing over bailing out.
type HTTPTransport struct {
	fast *retryablehttp.Client
	slow *retryablehttp.Client
	log  *slog.Logger
}

// New builds an HTTPTransport. fastTimeout governs routing RPCs,
// slowTimeout governs key-transfer/depart RPCs (§5 timeout guidance),
// retryMax bounds how many times either client retries a failed RPC.
func New(fastTimeout, slowTimeout time.Duration, retryMax int, log *slog.Logger) *HTTPTransport {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPTransport{
		fast: newClient(fastTimeout, retryMax, log),
		slow: newClient(slowTimeout, retryMax, log),
		log:  log,
	}
}

func newClient(timeout time.Duration, retryMax int, log *slog.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = timeout
	c.RetryMax = retryMax
	c.RetryWaitMin = 25 * time.Millisecond
	c.RetryWaitMax = 100 * time.Millisecond
	c.Logger = nil
	return c
}

func (t *HTTPTransport) getJSON(ctx context.Context, client *retryablehttp.Client, rawurl string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeOrErr(resp, out)
}

func (t *HTTPTransport) postJSON(ctx context.Context, client *retryablehttp.Client, rawurl string, body, out any) error {
	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, rawurl, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeOrErr(resp, out)
}

func decodeOrErr(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rpc failed: status %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (t *HTTPTransport) CheckAlive(ctx context.Context, addr string) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := t.fast.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (t *HTTPTransport) GetPredecessor(ctx context.Context, addr string) (*chord.NodeRef, error) {
	var ref *chord.NodeRef
	if err := t.getJSON(ctx, t.fast, "http://"+addr+"/get_predecessor", &ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (t *HTTPTransport) GetSuccessor(ctx context.Context, addr string) (chord.NodeRef, error) {
	var ref chord.NodeRef
	err := t.getJSON(ctx, t.fast, "http://"+addr+"/successor", &ref)
	return ref, err
}

func (t *HTTPTransport) Notify(ctx context.Context, addr string, candidate chord.NodeRef) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	err := t.postJSON(ctx, t.fast, "http://"+addr+"/notify", candidate, &out)
	return out.Success, err
}

func (t *HTTPTransport) ClosestPrecedingFinger(ctx context.Context, addr string, keyID uint64) (chord.NodeRef, error) {
	var ref chord.NodeRef
	u := "http://" + addr + "/closest_preceding_finger?key_id=" + strconv.FormatUint(keyID, 10)
	err := t.getJSON(ctx, t.fast, u, &ref)
	return ref, err
}

func (t *HTTPTransport) FindSuccessor(ctx context.Context, addr string, keyID uint64) (chord.NodeRef, error) {
	var ref chord.NodeRef
	u := "http://" + addr + "/find_successor?key_id=" + strconv.FormatUint(keyID, 10)
	err := t.getJSON(ctx, t.fast, u, &ref)
	return ref, err
}

func (t *HTTPTransport) FindPredecessor(ctx context.Context, addr string, keyID uint64) (chord.NodeRef, error) {
	var ref chord.NodeRef
	u := "http://" + addr + "/find_predecessor?key_id=" + strconv.FormatUint(keyID, 10)
	err := t.getJSON(ctx, t.fast, u, &ref)
	return ref, err
}

func (t *HTTPTransport) UpdateFingerTable(ctx context.Context, addr string, s chord.NodeRef, i int) (bool, error) {
	body := struct {
		I int           `json:"i"`
		S chord.NodeRef `json:"s"`
	}{I: i, S: s}
	var out struct {
		Success bool `json:"success"`
	}
	err := t.postJSON(ctx, t.fast, "http://"+addr+"/update_finger_table", body, &out)
	return out.Success, err
}

func (t *HTTPTransport) TransferKeys(ctx context.Context, addr string, newPredID uint64, lowerBound *uint64) (map[string]string, error) {
	body := struct {
		NodeID     uint64  `json:"node_id"`
		LowerBound *uint64 `json:"lower_bound,omitempty"`
	}{NodeID: newPredID, LowerBound: lowerBound}
	var out struct {
		Keys map[string]string `json:"keys"`
	}
	err := t.postJSON(ctx, t.slow, "http://"+addr+"/transfer_keys", body, &out)
	return out.Keys, err
}

func (t *HTTPTransport) ReceiveKeys(ctx context.Context, addr string, data map[string]string) error {
	body := struct {
		Data map[string]string `json:"data"`
	}{Data: data}
	return t.postJSON(ctx, t.slow, "http://"+addr+"/receive_keys", body, nil)
}

func (t *HTTPTransport) UpdateSuccessor(ctx context.Context, addr string, succ chord.NodeRef) error {
	body := struct {
		Successor chord.NodeRef `json:"successor"`
	}{Successor: succ}
	return t.postJSON(ctx, t.slow, "http://"+addr+"/update_successor", body, nil)
}

func (t *HTTPTransport) UpdatePredecessor(ctx context.Context, addr string, pred *chord.NodeRef) error {
	body := struct {
		Predecessor *chord.NodeRef `json:"predecessor"`
	}{Predecessor: pred}
	return t.postJSON(ctx, t.slow, "http://"+addr+"/update_predecessor", body, nil)
}

func (t *HTTPTransport) StoreRemote(ctx context.Context, addr string, key, value string) (chord.StoreResult, error) {
	u := "http://" + addr + "/store/" + url.PathEscape(key) + "?forwarded=1"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader([]byte(value)))
	if err != nil {
		return chord.StoreResult{}, err
	}
	resp, err := t.fast.Do(req)
	if err != nil {
		return chord.StoreResult{}, err
	}
	defer resp.Body.Close()
	var out chord.StoreResult
	if err := decodeOrErr(resp, &out); err != nil {
		return chord.StoreResult{}, err
	}
	out.Forwarded = true
	return out, nil
}

func (t *HTTPTransport) LookupRemote(ctx context.Context, addr string, key string) (chord.LookupResult, error) {
	u := "http://" + addr + "/lookup/" + url.PathEscape(key) + "?forwarded=1"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return chord.LookupResult{}, err
	}
	resp, err := t.fast.Do(req)
	if err != nil {
		return chord.LookupResult{}, err
	}
	defer resp.Body.Close()

	var out chord.LookupResult
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		b, _ := io.ReadAll(resp.Body)
		return chord.LookupResult{}, fmt.Errorf("rpc failed: status %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chord.LookupResult{}, err
	}
	out.Found = resp.StatusCode == http.StatusOK
	out.Forwarded = true
	return out, nil
}
