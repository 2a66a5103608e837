// Package httpapi is the thin REST surface over the core components.
// Routing middleware, authentication/session handling, and the OAuth
// authorization server's outer pages are external collaborators; this
// package wires the versioned endpoint families to the attack
// controller, stores, search dispatcher, and provenance reader, and maps
// error kinds to the stable numeric code contract. The authenticated user
// is taken from a header injected by the upstream auth layer.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kraken-ng/kraken/internal/app/attackctl"
	"github.com/kraken-ng/kraken/internal/app/domain/attack"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
	"github.com/kraken-ng/kraken/internal/app/metrics"
	"github.com/kraken-ng/kraken/internal/app/query"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/internal/app/system"
	"github.com/kraken-ng/kraken/pkg/logger"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
	provrecorder "github.com/kraken-ng/kraken/internal/app/provenance"
	searchsvc "github.com/kraken-ng/kraken/internal/app/search"
)

// userHeader carries the authenticated user's uuid, set by the upstream
// session middleware.
const userHeader = "X-Kraken-User"

const maxBodyBytes = 1 << 20

// Handler bundles the REST endpoints over the core components.
type Handler struct {
	attacks  *attackctl.Controller
	attackDB storage.AttackStore

	hosts    storage.HostStore
	ports    storage.PortStore
	services storage.ServiceStore
	httpSvcs storage.HttpServiceStore
	domains  storage.DomainStore

	search   *searchsvc.Dispatcher
	searches storage.SearchStore

	prov *provrecorder.Recorder

	descriptors func() []core.Descriptor

	log *logger.Logger
}

// New constructs a Handler. descriptors may be nil; log may be nil.
func New(
	attacks *attackctl.Controller,
	attackDB storage.AttackStore,
	hosts storage.HostStore,
	ports storage.PortStore,
	services storage.ServiceStore,
	httpSvcs storage.HttpServiceStore,
	domains storage.DomainStore,
	search *searchsvc.Dispatcher,
	searches storage.SearchStore,
	prov *provrecorder.Recorder,
	descriptors func() []core.Descriptor,
	log *logger.Logger,
) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		attacks:     attacks,
		attackDB:    attackDB,
		hosts:       hosts,
		ports:       ports,
		services:    services,
		httpSvcs:    httpSvcs,
		domains:     domains,
		search:      search,
		searches:    searches,
		prov:        prov,
		descriptors: descriptors,
		log:         log,
	}
}

// Router mounts every endpoint family under the versioned prefix.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/system/descriptors", h.systemDescriptors).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/attacks/{kind}", h.startAttack).Methods(http.MethodPost)
	api.HandleFunc("/attacks/{uuid}", h.getAttack).Methods(http.MethodGet)
	api.HandleFunc("/attacks/{uuid}", h.deleteAttack).Methods(http.MethodDelete)
	api.HandleFunc("/workspaces/{workspace}/attacks", h.listAttacks).Methods(http.MethodGet)

	api.HandleFunc("/workspaces/{workspace}/hosts/all", h.listHosts).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{workspace}/ports/all", h.listPorts).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{workspace}/services/all", h.listServices).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{workspace}/httpServices/all", h.listHttpServices).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{workspace}/domains/all", h.listDomains).Methods(http.MethodPost)

	api.HandleFunc("/workspaces/{workspace}/{kind}/{uuid}/sources", h.entitySources).Methods(http.MethodGet)

	api.HandleFunc("/workspaces/{workspace}/search", h.startSearch).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{workspace}/search/{uuid}", h.getSearch).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{workspace}/search/{uuid}/results", h.searchResults).Methods(http.MethodGet)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) systemDescriptors(w http.ResponseWriter, _ *http.Request) {
	var ds []core.Descriptor
	if h.descriptors != nil {
		ds = h.descriptors()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"descriptors": ds})
}

// pathUUID parses one {name} route variable as a uuid.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, krakenerr.New(krakenerr.ClientInput, krakenerr.CodeInvalidUUID, "invalid uuid in path")
	}
	return id, nil
}

func requestUser(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(userHeader)
	if raw == "" {
		return uuid.Nil, krakenerr.New(krakenerr.Authorization, "Unauthenticated", "missing authenticated user")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, krakenerr.New(krakenerr.Authorization, "Unauthenticated", "malformed user header")
	}
	return id, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return krakenerr.Wrap(krakenerr.ClientInput, "InvalidJson", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return krakenerr.Wrap(krakenerr.ClientInput, "InvalidJson", err)
	}
	return nil
}

func queryInt(r *http.Request, name, fallback string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		raw = fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// attackRequest is the body of POST /attacks/<kind>.
type attackRequest struct {
	Workspace uuid.UUID         `json:"workspace"`
	Leech     *uuid.UUID        `json:"leech,omitempty"`
	Targets   []string          `json:"targets"`
	Params    map[string]string `json:"params,omitempty"`
}

var startableKinds = map[string]attack.Kind{
	"bruteforceSubdomains":    attack.KindBruteforceSubdomains,
	"hostsAlive":              attack.KindHostsAlive,
	"udpServiceDetection":     attack.KindUDPServiceDetection,
	"serviceDetection":        attack.KindServiceDetection,
	"certificateTransparency": attack.KindCertificateTransparency,
	"dnsResolution":           attack.KindDNSResolution,
	"dnsTxtScan":              attack.KindDNSTxtScan,
	"osDetection":             attack.KindOSDetection,
	"testssl":                 attack.KindTestSSL,
	"dehashedQuery":           attack.KindDehashedQuery,
	// tcpPortScan is deliberately absent: deprecated, decode-only.
}

func (h *Handler) startAttack(w http.ResponseWriter, r *http.Request) {
	kind, ok := startableKinds[mux.Vars(r)["kind"]]
	if !ok {
		writeError(w, krakenerr.New(krakenerr.ClientInput, "UnknownAttackKind", "unknown attack kind"))
		return
	}
	user, err := requestUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req attackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Workspace == uuid.Nil {
		writeError(w, krakenerr.New(krakenerr.ClientInput, krakenerr.CodeMissingField, "workspace is required"))
		return
	}
	id, err := h.attacks.Start(r.Context(), req.Workspace, user, kind, req.Leech, req.Targets, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]uuid.UUID{"uuid": id})
}

func (h *Handler) getAttack(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "uuid")
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := uuid.Parse(r.URL.Query().Get("workspace"))
	if err != nil {
		writeError(w, krakenerr.New(krakenerr.ClientInput, krakenerr.CodeInvalidUUID, "workspace query parameter required"))
		return
	}
	a, err := h.attackDB.GetAttack(r.Context(), ws, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) deleteAttack(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "uuid")
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := uuid.Parse(r.URL.Query().Get("workspace"))
	if err != nil {
		writeError(w, krakenerr.New(krakenerr.ClientInput, krakenerr.CodeInvalidUUID, "workspace query parameter required"))
		return
	}
	// Cancel the in-flight stream first so its consumer never writes a
	// terminal state for a row about to disappear.
	h.attacks.Cancel(id)
	if err := h.attackDB.DeleteAttack(r.Context(), ws, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAttacks(w http.ResponseWriter, r *http.Request) {
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	limit := core.ClampLimit(queryInt(r, "limit", "50"), 50, 1000)
	offset := queryInt(r, "offset", "0")
	items, total, err := h.attackDB.ListAttacks(r.Context(), ws, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page(items, total, limit, offset))
}

// listRequest is the body of every POST .../all listing: pagination plus
// the entity-kind filter and the global filter, both optional.
type listRequest struct {
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
	Filter       string `json:"filter,omitempty"`
	GlobalFilter string `json:"global_filter,omitempty"`
}

func page(items interface{}, total, limit, offset int) map[string]interface{} {
	return map[string]interface{}{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	}
}

// decodeListRequest validates pagination and parses the global filter;
// the kind-specific filter is parsed by each endpoint.
func (h *Handler) decodeListRequest(r *http.Request) (listRequest, query.GlobalAST, error) {
	var req listRequest
	if err := decodeJSON(r, &req); err != nil {
		return req, query.GlobalAST{}, err
	}
	req.Limit = core.ClampLimit(req.Limit, 50, 1000)
	if req.Offset < 0 {
		req.Offset = 0
	}
	global, err := query.ParseGlobal(req.GlobalFilter)
	if err != nil {
		return req, query.GlobalAST{}, err
	}
	return req, global, nil
}

func (h *Handler) listHosts(w http.ResponseWriter, r *http.Request) {
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	req, _, err := h.decodeListRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := query.ParseHost(req.Filter); err != nil {
		writeError(w, err)
		return
	}
	items, total, err := h.hosts.ListHosts(r.Context(), ws, req.Limit, req.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page(items, total, req.Limit, req.Offset))
}

func (h *Handler) listPorts(w http.ResponseWriter, r *http.Request) {
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	req, _, err := h.decodeListRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := query.ParsePort(req.Filter); err != nil {
		writeError(w, err)
		return
	}
	items, total, err := h.ports.ListPorts(r.Context(), ws, req.Limit, req.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page(items, total, req.Limit, req.Offset))
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	req, _, err := h.decodeListRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := query.ParseService(req.Filter); err != nil {
		writeError(w, err)
		return
	}
	items, total, err := h.services.ListServices(r.Context(), ws, req.Limit, req.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page(items, total, req.Limit, req.Offset))
}

func (h *Handler) listHttpServices(w http.ResponseWriter, r *http.Request) {
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	req, _, err := h.decodeListRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := query.ParseHttpService(req.Filter); err != nil {
		writeError(w, err)
		return
	}
	items, total, err := h.httpSvcs.ListHttpServices(r.Context(), ws, req.Limit, req.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page(items, total, req.Limit, req.Offset))
}

func (h *Handler) listDomains(w http.ResponseWriter, r *http.Request) {
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	req, _, err := h.decodeListRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := query.ParseDomain(req.Filter); err != nil {
		writeError(w, err)
		return
	}
	items, total, err := h.domains.ListDomains(r.Context(), ws, req.Limit, req.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page(items, total, req.Limit, req.Offset))
}

var sourceTables = map[string]provenance.Table{
	"hosts":        provenance.TableHost,
	"ports":        provenance.TablePort,
	"services":     provenance.TableService,
	"httpServices": provenance.TableHttpService,
	"domains":      provenance.TableDomain,
}

func (h *Handler) entitySources(w http.ResponseWriter, r *http.Request) {
	table, ok := sourceTables[mux.Vars(r)["kind"]]
	if !ok {
		writeError(w, krakenerr.New(krakenerr.ClientInput, "UnknownEntityKind", "unknown entity kind"))
		return
	}
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathUUID(r, "uuid")
	if err != nil {
		writeError(w, err)
		return
	}
	full, err := h.prov.Full(r.Context(), ws, table, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, full)
}

type searchRequest struct {
	Term string `json:"term"`
}

func (h *Handler) startSearch(w http.ResponseWriter, r *http.Request) {
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := requestUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := h.search.Start(r.Context(), ws, user, req.Term)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]uuid.UUID{"uuid": id})
}

func (h *Handler) getSearch(w http.ResponseWriter, r *http.Request) {
	ws, err := pathUUID(r, "workspace")
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathUUID(r, "uuid")
	if err != nil {
		writeError(w, err)
		return
	}
	s, err := h.searches.GetSearch(r.Context(), ws, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) searchResults(w http.ResponseWriter, r *http.Request) {
	if _, err := pathUUID(r, "workspace"); err != nil {
		writeError(w, err)
		return
	}
	id, err := pathUUID(r, "uuid")
	if err != nil {
		writeError(w, err)
		return
	}
	limit := core.ClampLimit(queryInt(r, "limit", "50"), 50, 1000)
	offset := queryInt(r, "offset", "0")
	items, total, err := h.searches.ListResults(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page(items, total, limit, offset))
}

var _ system.DescriptorProvider = (*Handler)(nil)

// Descriptor advertises this component for the /system/descriptors inventory.
func (h *Handler) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "httpapi", Domain: "transport", Layer: core.LayerSurface}.
		WithCapabilities("attacks", "listings", "sources", "search")
}
