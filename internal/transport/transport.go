// Package transport implements the HTTP contract (C8, SPEC_FULL.md §6):
// a thin gorilla/mux wrapper around internal/registry, reporting every
// registry or decoding error as HTTP 400 with the error's text and encoding
// digests/balances the way the wire format requires — "0x"-prefixed hex
// for 32-byte digests, decimal strings for u128-scale balances.
package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/farcloud-labs/subsmt/internal/account"
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/mergevalue"
	"github.com/farcloud-labs/subsmt/internal/ratelimit"
	"github.com/farcloud-labs/subsmt/internal/registry"
	"github.com/farcloud-labs/subsmt/internal/smterrors"
	"github.com/farcloud-labs/subsmt/internal/snapshot"
)

// Server wires the registry, rate limiter and optional snapshot exporter
// behind an http.Handler.
type Server struct {
	registry  *registry.Registry
	limiter   *ratelimit.Limiter
	snapshots *snapshot.Exporter // nil when no bucket is configured
	logger    *zap.Logger

	upgrader websocket.Upgrader

	watchMu   sync.Mutex
	watchSubs map[string][]chan h256.H256
}

// New builds a Server. snapshots may be nil (C12 disabled).
func New(reg *registry.Registry, limiter *ratelimit.Limiter, snapshots *snapshot.Exporter, logger *zap.Logger) *Server {
	return &Server{
		registry:  reg,
		limiter:   limiter,
		snapshots: snapshots,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		watchSubs: make(map[string][]chan h256.H256),
	}
}

// Router builds the mux.Router exposing every endpoint in SPEC_FULL.md §6.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/trees/{namespace}/update", s.handleUpdate).Methods(http.MethodPost)
	r.HandleFunc("/trees/{namespace}/update_all", s.handleUpdateAll).Methods(http.MethodPost)
	r.HandleFunc("/trees/{namespace}/value", s.handleValue).Methods(http.MethodGet)
	r.HandleFunc("/trees/{namespace}/root", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/trees/{namespace}/merkle_proof", s.handleMerkleProof).Methods(http.MethodGet)
	r.HandleFunc("/trees/{namespace}/compile_proof", s.handleCompileProof).Methods(http.MethodPost)
	r.HandleFunc("/trees/{namespace}/next_root", s.handleNextRoot).Methods(http.MethodPost)
	r.HandleFunc("/trees/{namespace}/verify", s.handleVerify).Methods(http.MethodPost)
	r.HandleFunc("/trees/{namespace}/clear", s.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/trees/{namespace}/watch", s.handleWatch).Methods(http.MethodGet)
	r.HandleFunc("/trees/{namespace}/snapshot", s.handleSnapshot).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// accountKeyValueRequest is the JSON body shape for a single (key, value)
// mutation, per SPEC_FULL.md §6.
type accountKeyValueRequest struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

func (req accountKeyValueRequest) toDomain() (account.Key, account.Value, error) {
	balance, ok := new(big.Int).SetString(req.Balance, 10)
	if !ok {
		return account.Key{}, account.Value{}, smterrors.NewCodecError("balance", errNotDecimal(req.Balance))
	}
	return account.Key{Address: req.Address}, account.Value{Nonce: req.Nonce, Balance: balance}, nil
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	if !s.allowWrite(w, r, namespace) {
		return
	}

	var req accountKeyValueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, value, err := req.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	root, err := s.registry.Update(namespace, key, value)
	if err != nil {
		writeError(w, err)
		return
	}
	s.notifyWatchers(namespace, root)
	writeJSON(w, http.StatusOK, map[string]string{"root": root.Hex()})
}

func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	if !s.allowWrite(w, r, namespace) {
		return
	}

	var req []accountKeyValueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	keys := make([]account.Key, len(req))
	values := make([]account.Value, len(req))
	for i, kv := range req {
		k, v, err := kv.toDomain()
		if err != nil {
			writeError(w, err)
			return
		}
		keys[i], values[i] = k, v
	}

	root, err := s.registry.UpdateAll(namespace, keys, values)
	if err != nil {
		writeError(w, err)
		return
	}
	s.notifyWatchers(namespace, root)
	writeJSON(w, http.StatusOK, map[string]string{"root": root.Hex()})
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	address := r.URL.Query().Get("address")

	value, err := s.registry.GetValue(namespace, account.Key{Address: address})
	if err != nil {
		writeError(w, err)
		return
	}

	balance := "0"
	if value.Balance != nil {
		balance = value.Balance.String()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nonce":   value.Nonce,
		"balance": balance,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	root, err := s.registry.GetRoot(namespace)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"root": root.Hex()})
}

// mergeValueResponse is the wire form of a single sibling entry.
type mergeValueResponse struct {
	Kind      uint8  `json:"kind"`
	Value     string `json:"value,omitempty"`
	BaseNode  string `json:"base_node,omitempty"`
	ZeroBits  string `json:"zero_bits,omitempty"`
	ZeroCount uint8  `json:"zero_count,omitempty"`
}

func encodeMergeValue(mv mergevalue.MergeValue) mergeValueResponse {
	if mv.Kind == mergevalue.KindValue {
		return mergeValueResponse{Kind: uint8(mv.Kind), Value: mv.Value.Hex()}
	}
	return mergeValueResponse{
		Kind:      uint8(mv.Kind),
		BaseNode:  mv.BaseNode.Hex(),
		ZeroBits:  mv.ZeroBits.Hex(),
		ZeroCount: mv.ZeroCount,
	}
}

func (s *Server) handleMerkleProof(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	address := r.URL.Query().Get("address")

	proof, err := s.registry.MerkleProof(namespace, account.Key{Address: address})
	if err != nil {
		writeError(w, err)
		return
	}

	siblings := make([]mergeValueResponse, len(proof.Siblings))
	for i, sib := range proof.Siblings {
		siblings[i] = encodeMergeValue(sib)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":          proof.Path.Hex(),
		"value_hash":    proof.ValueHash.Hex(),
		"root":          proof.Root.Hex(),
		"leaves_bitmap": proof.LeavesBitmap.Hex(),
		"siblings":      siblings,
	})
}

func (s *Server) handleCompileProof(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]

	var req struct {
		Addresses []string `json:"addresses"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	keys := make([]account.Key, len(req.Addresses))
	for i, addr := range req.Addresses {
		keys[i] = account.Key{Address: addr}
	}

	blob, err := s.registry.CompileProof(namespace, keys)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"proof": base64.StdEncoding.EncodeToString(blob)})
}

func (s *Server) handleNextRoot(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]

	var req struct {
		Proof string                   `json:"proof"`
		KVs   []accountKeyValueRequest `json:"kvs"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	blob, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		writeError(w, smterrors.NewCodecError("compiled proof base64", err))
		return
	}

	keys := make([]account.Key, len(req.KVs))
	values := make([]account.Value, len(req.KVs))
	for i, kv := range req.KVs {
		k, v, err := kv.toDomain()
		if err != nil {
			writeError(w, err)
			return
		}
		keys[i], values[i] = k, v
	}

	root, err := s.registry.ComputeNextRoot(blob, keys, values)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = namespace // namespace is implied by the proof; kept in the route for symmetry with the other endpoints.
	writeJSON(w, http.StatusOK, map[string]string{"root": root.Hex()})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	address := r.URL.Query().Get("address")

	proof, err := s.registry.MerkleProof(namespace, account.Key{Address: address})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": registry.Verify(proof)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	if !s.allowWrite(w, r, namespace) {
		return
	}
	if err := s.registry.Clear(namespace); err != nil {
		writeError(w, err)
		return
	}
	s.notifyWatchers(namespace, h256.Zero)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleSnapshot exports namespace's current state to object storage
// (C12). It returns 501 if no snapshot exporter is configured.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	if s.snapshots == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "snapshot export is not configured"})
		return
	}

	object, err := s.snapshots.Export(r.Context(), namespace)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"object": object})
}

func (s *Server) allowWrite(w http.ResponseWriter, r *http.Request, namespace string) bool {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if err := s.limiter.CheckWrite(r.Context(), namespace, ip); err != nil {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err as HTTP 400 with the error's text, whatever its
// kind in the smterrors taxonomy (SPEC_FULL.md §7).
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func errNotDecimal(s string) error {
	return fmt.Errorf("balance is not a decimal integer: %q", s)
}

// handleWatch upgrades to a websocket and streams every root change for
// namespace as it happens — an additive notification channel the original
// implementation's polling-only clients didn't have (SPEC_FULL.md §6,
// C13).
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("watch: upgrade failed", zap.Error(err))
		}
		return
	}
	defer conn.Close()

	ch := make(chan h256.H256, 8)
	s.subscribe(namespace, ch)
	defer s.unsubscribe(namespace, ch)

	for root := range ch {
		if err := conn.WriteJSON(map[string]string{"root": root.Hex()}); err != nil {
			return
		}
	}
}

func (s *Server) subscribe(namespace string, ch chan h256.H256) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.watchSubs[namespace] = append(s.watchSubs[namespace], ch)
}

func (s *Server) unsubscribe(namespace string, ch chan h256.H256) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	subs := s.watchSubs[namespace]
	for i, c := range subs {
		if c == ch {
			s.watchSubs[namespace] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
}

// notifyWatchers fans a new root out to every /watch subscriber of
// namespace, dropping it for any subscriber whose buffer is full rather
// than blocking a write request on a slow reader.
func (s *Server) notifyWatchers(namespace string, root h256.H256) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchSubs[namespace] {
		select {
		case ch <- root:
		default:
		}
	}
}
