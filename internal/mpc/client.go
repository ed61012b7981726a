package mpc

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/box"
)

var (
	// ErrMpcUnavailable: the cluster could not be reached during
	// bootstrap. New degrades to simulate mode instead of returning it;
	// it only surfaces when a live-only step fails after the probe
	// succeeded.
	ErrMpcUnavailable = errors.New("mpc cluster unavailable")

	// ErrComputationTimeout: the remote job did not finalize within the
	// caller's wall-clock bound. The job is discarded; retries must
	// submit a fresh one.
	ErrComputationTimeout = errors.New("mpc computation timeout")

	// ErrSignatureVerificationFailure: the returned signature does not
	// verify against the cluster verifying key. Never ignored.
	ErrSignatureVerificationFailure = errors.New("mpc signature verification failure")
)

// ClientConfig tunes the cluster client. All durations have working
// defaults applied by NewClient.
type ClientConfig struct {
	Endpoint     string
	ProbeTimeout time.Duration
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	KeyFetch     RetryPolicy
}

func (cfg *ClientConfig) applyDefaults() {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.KeyFetch.MaxAttempts <= 0 {
		cfg.KeyFetch.MaxAttempts = 3
	}
	if cfg.KeyFetch.Delay <= 0 {
		cfg.KeyFetch.Delay = time.Second
	}
}

// Client talks to the external MPC cluster: it submits signing jobs,
// subscribes to completion events, polls finalization, and verifies
// results. If the cluster is unreachable at construction it operates
// in simulate mode, fabricating signature-shaped results that are
// never claimed as verified.
type Client struct {
	cfg        ClientConfig
	clientID   string
	httpClient *http.Client
	keys       ClusterKeys
	live       bool

	mu      sync.Mutex
	pending map[uint64]*SigningJob

	ws        *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient probes the cluster and bootstraps the connection. A failed
// connectivity probe selects simulate mode rather than failing hard; a
// reachable cluster whose bootstrap (key fetch, event subscription)
// fails is an error.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.applyDefaults()

	c := &Client{
		cfg:        cfg,
		clientID:   uuid.New().String(),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		pending:    make(map[uint64]*SigningJob),
		done:       make(chan struct{}),
	}

	if cfg.Endpoint == "" || !c.probe() {
		c.enterSimulateMode()
		return c, nil
	}

	if err := c.fetchClusterKeys(); err != nil {
		return nil, errors.Wrap(ErrMpcUnavailable, err.Error())
	}
	if err := c.subscribe(); err != nil {
		return nil, errors.Wrap(ErrMpcUnavailable, err.Error())
	}
	c.live = true

	log.Info().
		Str("client_id", c.clientID).
		Str("endpoint", cfg.Endpoint).
		Msg("Connected to MPC cluster")

	return c, nil
}

// HasLiveConnection reports whether results come from the real cluster
// (true) or from simulate mode (false).
func (c *Client) HasLiveConnection() bool {
	return c.live
}

// VerifyingKey returns the cluster's published verifying key.
func (c *Client) VerifyingKey() ed25519.PublicKey {
	return c.keys.VerifyingKey
}

// Close tears down the event subscription.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
	return nil
}

func (c *Client) enterSimulateMode() {
	// Random keys so Seal keeps working; nothing ever verifies
	// against them and results stay unverified.
	if _, err := rand.Read(c.keys.EncryptionKey[:]); err != nil {
		panic(err)
	}
	c.live = false
	log.Warn().
		Str("client_id", c.clientID).
		Str("endpoint", c.cfg.Endpoint).
		Msg("MPC cluster unreachable, operating in SIMULATE mode: signatures are fabricated and unverified")
}

func (c *Client) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/api/v1/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("MPC cluster connectivity probe failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// fetchClusterKeys retrieves the cluster's verifying and encryption
// keys, retrying per the configured policy before giving up.
func (c *Client) fetchClusterKeys() error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.KeyFetch.MaxAttempts; attempt++ {
		if attempt > 1 {
			log.Warn().
				Int("attempt", attempt).
				Err(lastErr).
				Msg("Retrying cluster key fetch")
			time.Sleep(c.cfg.KeyFetch.Delay)
		}

		keys, err := c.getClusterKeys()
		if err == nil {
			c.keys = *keys
			return nil
		}
		lastErr = err
	}
	return errors.Wrapf(lastErr, "cluster key fetch failed after %d attempts", c.cfg.KeyFetch.MaxAttempts)
}

func (c *Client) getClusterKeys() (*ClusterKeys, error) {
	var body clusterKeysResponse
	if err := c.getJSON(context.Background(), "/api/v1/cluster/keys", &body); err != nil {
		return nil, err
	}

	verifying, err := hex.DecodeString(body.VerifyingKey)
	if err != nil || len(verifying) != ed25519.PublicKeySize {
		return nil, errors.New("cluster returned malformed verifying key")
	}
	encryption, err := hex.DecodeString(body.EncryptionKey)
	if err != nil || len(encryption) != 32 {
		return nil, errors.New("cluster returned malformed encryption key")
	}

	keys := &ClusterKeys{VerifyingKey: verifying}
	copy(keys.EncryptionKey[:], encryption)
	return keys, nil
}

// InitCompDef registers the computation definition for circuit with
// the cluster. Idempotent: an already-initialized definition is not an
// error. No-op in simulate mode.
func (c *Client) InitCompDef(ctx context.Context, circuit string) error {
	if !c.live {
		log.Debug().Str("circuit", circuit).Msg("Simulate mode, skipping computation definition init")
		return nil
	}

	status, err := c.postJSON(ctx, "/api/v1/computation-definitions",
		map[string]string{"circuit": circuit, "client_id": c.clientID}, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to init computation definition %s", circuit)
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusConflict {
		return errors.Errorf("computation definition init for %s rejected with status %d", circuit, status)
	}

	log.Info().Str("circuit", circuit).Msg("Computation definition initialized")
	return nil
}

// Seal encrypts a wallet secret to the cluster's public encryption
// key, so only the cluster can open it during key distribution.
func (c *Client) Seal(secret []byte) ([]byte, error) {
	sealed, err := box.SealAnonymous(nil, secret, &c.keys.EncryptionKey, rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to seal secret to cluster key")
	}
	return sealed, nil
}

// Submit queues a signing computation for message under walletRef. The
// completion listener is registered before the job is posted, so a
// result arriving faster than the caller reaches AwaitResult is never
// lost.
func (c *Client) Submit(ctx context.Context, walletRef []byte, message [32]byte) (*SigningJob, error) {
	return c.submit(ctx, CircuitSignTransaction, walletRef, message, nil)
}

func (c *Client) submit(ctx context.Context, circuit string, walletRef []byte, message [32]byte, payload []byte) (*SigningJob, error) {
	job := &SigningJob{
		CorrelationID: newCorrelationID(),
		Circuit:       circuit,
		Message:       message,
		WalletRef:     append([]byte(nil), walletRef...),
		SubmittedAt:   time.Now().UTC(),
		result:        make(chan *SigningResult, 1),
		simulated:     !c.live,
	}

	// Listener before submit: closes the race where the cluster
	// finalizes before the local side is ready to observe it.
	c.register(job)

	if !c.live {
		c.scheduleSimulatedResult(job)
		log.Info().
			Uint64("correlation_id", job.CorrelationID).
			Str("circuit", circuit).
			Msg("Simulate mode, fabricating computation result")
		return job, nil
	}

	req := submitRequest{
		CorrelationID: strconv.FormatUint(job.CorrelationID, 10),
		Circuit:       circuit,
		WalletRef:     hex.EncodeToString(walletRef),
		Message:       hex.EncodeToString(message[:]),
	}
	if payload != nil {
		req.Payload = hex.EncodeToString(payload)
	}

	var resp submitResponse
	status, err := c.postJSON(ctx, "/api/v1/computations", req, &resp)
	if err != nil {
		c.unregister(job)
		return nil, errors.Wrapf(err, "failed to submit computation %d", job.CorrelationID)
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		c.unregister(job)
		return nil, errors.Errorf("computation %d rejected with status %d: %s", job.CorrelationID, status, resp.Error)
	}

	log.Info().
		Uint64("correlation_id", job.CorrelationID).
		Str("circuit", circuit).
		Str("message", hex.EncodeToString(message[:])).
		Msg("Computation submitted to MPC cluster")

	return job, nil
}

// AwaitResult blocks until the job has both finalized on the cluster
// and delivered its completion event, in either order, then verifies
// the signature against the cluster verifying key. On expiry of
// timeout it fails with ErrComputationTimeout; the job is discarded
// either way.
func (c *Client) AwaitResult(ctx context.Context, job *SigningJob, timeout time.Duration) (*SigningResult, error) {
	defer c.unregister(job)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	// Finalization polling with capped backoff. Simulate mode has no
	// cluster to poll; the fabricated event alone resolves the job.
	pollInterval := c.cfg.PollInterval
	poll := time.NewTimer(pollInterval)
	defer poll.Stop()

	finalized := job.simulated
	var result *SigningResult

	for {
		if finalized && result != nil {
			return c.finish(job, result)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, errors.Wrapf(ErrComputationTimeout,
				"computation %d did not finalize within %s", job.CorrelationID, timeout)
		case r := <-job.result:
			result = r
		case <-poll.C:
			if !finalized {
				done, err := c.pollFinalization(ctx, job)
				if err != nil {
					return nil, err
				}
				finalized = done
			}
			if pollInterval < 2*time.Second {
				pollInterval *= 2
			}
			poll.Reset(pollInterval)
		}
	}
}

func (c *Client) pollFinalization(ctx context.Context, job *SigningJob) (bool, error) {
	var body statusResponse
	path := "/api/v1/computations/" + strconv.FormatUint(job.CorrelationID, 10)
	if err := c.getJSON(ctx, path, &body); err != nil {
		// Transient poll errors are not terminal; the deadline bounds
		// how long we keep trying.
		log.Warn().Err(err).Uint64("correlation_id", job.CorrelationID).Msg("Finalization poll failed")
		return false, nil
	}

	switch body.Status {
	case statusFinalized:
		return true, nil
	case statusFailed:
		return false, errors.Errorf("computation %d aborted by cluster: %s", job.CorrelationID, body.Error)
	default:
		return false, nil
	}
}

// finish verifies and stamps the result. Simulated results are passed
// through unverified.
func (c *Client) finish(job *SigningJob, result *SigningResult) (*SigningResult, error) {
	if result.FinalizedAt.IsZero() {
		result.FinalizedAt = time.Now().UTC()
	}

	if job.simulated {
		log.Info().
			Uint64("correlation_id", job.CorrelationID).
			Msg("Returning simulated computation result (unverified)")
		return result, nil
	}

	if job.Circuit == CircuitSignTransaction {
		if !ed25519.Verify(c.keys.VerifyingKey, job.Message[:], result.Signature) {
			return nil, errors.Wrapf(ErrSignatureVerificationFailure,
				"computation %d returned a signature that does not verify", job.CorrelationID)
		}
		result.Verified = true
	}

	log.Info().
		Uint64("correlation_id", job.CorrelationID).
		Str("circuit", job.Circuit).
		Bool("verified", result.Verified).
		Msg("Computation result finalized")

	return result, nil
}

// DistributeKey submits the key-distribution computation carrying a
// secret sealed to the cluster encryption key and waits for its
// completion. In simulate mode the handshake is fabricated as
// successful.
func (c *Client) DistributeKey(ctx context.Context, walletRef []byte, sealedSecret []byte, timeout time.Duration) error {
	job, err := c.submit(ctx, CircuitDistributeKey, walletRef, [32]byte{}, sealedSecret)
	if err != nil {
		return err
	}
	if _, err := c.AwaitResult(ctx, job, timeout); err != nil {
		return errors.Wrap(err, "key distribution handshake failed")
	}
	return nil
}

func (c *Client) register(job *SigningJob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[job.CorrelationID] = job
}

func (c *Client) unregister(job *SigningJob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, job.CorrelationID)
}

func (c *Client) scheduleSimulatedResult(job *SigningJob) {
	go func() {
		select {
		case <-c.done:
			return
		case <-time.After(10 * time.Millisecond):
		}

		sig := make([]byte, ed25519.SignatureSize)
		if _, err := rand.Read(sig); err != nil {
			return
		}
		job.result <- &SigningResult{
			Signature:   sig,
			Verified:    false,
			FinalizedAt: time.Now().UTC(),
		}
	}()
}

// subscribe opens the completion-event channel and starts the read
// loop that resolves pending jobs.
func (c *Client) subscribe() error {
	wsURL := strings.Replace(c.cfg.Endpoint, "http", "ws", 1) + "/api/v1/events?client_id=" + c.clientID

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ProbeTimeout}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to cluster events")
	}
	c.ws = conn

	go c.readLoop()
	return nil
}

func (c *Client) readLoop() {
	for {
		var ev completionEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			select {
			case <-c.done:
			default:
				log.Error().Err(err).Msg("Cluster event subscription closed")
			}
			return
		}
		c.dispatch(&ev)
	}
}

// dispatch matches an event to its pending job by correlation ID. The
// job channel is buffered with capacity one and never drained by
// anyone but AwaitResult, so the first delivery wins and duplicates
// are dropped.
func (c *Client) dispatch(ev *completionEvent) {
	if ev.Type != eventSignCompleted && ev.Type != eventDistributeCompleted {
		return
	}

	correlationID, err := strconv.ParseUint(ev.CorrelationID, 10, 64)
	if err != nil {
		log.Warn().Str("correlation_id", ev.CorrelationID).Msg("Discarding event with malformed correlation ID")
		return
	}

	c.mu.Lock()
	job, ok := c.pending[correlationID]
	c.mu.Unlock()
	if !ok {
		log.Debug().Uint64("correlation_id", correlationID).Msg("Discarding event for unknown computation")
		return
	}

	var sig []byte
	if ev.Signature != "" {
		sig, err = hex.DecodeString(ev.Signature)
		if err != nil {
			log.Warn().Uint64("correlation_id", correlationID).Msg("Discarding event with malformed signature")
			return
		}
	}

	result := &SigningResult{Signature: sig}
	if ev.FinalizedAt != "" {
		if ts, err := time.Parse(time.RFC3339, ev.FinalizedAt); err == nil {
			result.FinalizedAt = ts
		}
	}

	select {
	case job.result <- result:
	default:
		log.Debug().Uint64("correlation_id", correlationID).Msg("Duplicate completion event dropped")
	}
}

func newCorrelationID() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return binary.BigEndian.Uint64(buf[:])
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("request to %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", path)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in interface{}, out interface{}) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return 0, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, errors.Wrapf(err, "failed to decode response from %s", path)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	return resp.StatusCode, nil
}
