package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"github.com/rs/cors"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/surfaces/dvid"
	"github.com/janelia-flyem/surfaces/storage"
	"github.com/janelia-flyem/surfaces/surface"
)

const (
	// WebAPIPath is the path prefix of all HTTP API requests.
	WebAPIPath = "/api/"

	jsonContentType = "application/json"
)

const webHelp = `
Surfaces HTTP API

GET  /api/help
	This help.

GET  /api/surfaces
	JSON list of stored surface set names.

POST /api/surfaces/<name>
	Stores a surface set.  The body is a JSON list of surfaces, a JSON export envelope, or
	a binary export if Content-Type is application/x-msgpack.  Requires a JWT if the server
	has an [auth] secret_key.

GET  /api/surfaces/<name>[?format=msgpack]
	Returns the stored set as a JSON export envelope, or as a binary export.

DELETE /api/surfaces/<name>
	Deletes a surface set.  Requires a JWT if the server has an [auth] secret_key.

GET  /api/surfaces/<name>/info
	Returns metadata, number of surfaces, and per-surface ranges and shapes.

GET  /api/surfaces/<name>/<index>/center?axis=x&i=3
	Returns the coordinate of voxel center i along the axis.

GET  /api/surfaces/<name>/<index>/classify?point=x,y,z
	Returns "inside", "outside", or "boundary" for the point.

GET  /api/surfaces/<name>/<index>/crossing?axis=z&point=x,y,z[&min=..][&max=..][&all=true]
	Returns the first boundary crossing along the axis through the point within [min, max],
	or every crossing along the line if all=true.

POST /api/validate
	Checks a JSON or binary surface document without storing it.
`

var webMux *web.Mux

func initRoutes() {
	writeMux := web.New()
	writeMux.Use(isAuthorized)
	writeMux.Post("/api/surfaces/:name", postSurfacesHandler)
	writeMux.Delete("/api/surfaces/:name", deleteSurfacesHandler)

	mux := web.New()
	mux.Use(logHTTP)
	mux.Get("/api/help", helpHandler)
	mux.Get("/api/surfaces", listHandler)
	mux.Post("/api/surfaces/:name", writeMux)
	mux.Delete("/api/surfaces/:name", writeMux)
	mux.Get("/api/surfaces/:name", getSurfacesHandler)
	mux.Get("/api/surfaces/:name/info", infoHandler)
	mux.Get("/api/surfaces/:name/:index/center", centerHandler)
	mux.Get("/api/surfaces/:name/:index/classify", classifyHandler)
	mux.Get("/api/surfaces/:name/:index/crossing", crossingHandler)
	mux.Post("/api/validate", validateHandler)
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, r, "no such endpoint: %s %s", r.Method, r.URL.Path)
	})
	webMux = mux
}

func corsHandler(h http.Handler) http.Handler {
	if len(tc.Server.CorsDomains) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins: tc.Server.CorsDomains,
		AllowedMethods: []string{"GET", "POST", "DELETE", "HEAD"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(h)
}

// ServeSingleHTTP fulfills one request using the default web Mux.
func ServeSingleHTTP(w http.ResponseWriter, r *http.Request) {
	if webMux == nil {
		initRoutes()
	}
	corsHandler(webMux).ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// logHTTP is middleware that logs each request with its status and elapsed time.
func logHTTP(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		timedLog := dvid.NewTimeLog()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		if rec.status >= 400 {
			timedLog.Warningf("HTTP %s %s (%d)", r.Method, r.URL, rec.status)
		} else {
			timedLog.Debugf("HTTP %s %s (%d)", r.Method, r.URL, rec.status)
		}
	}
	return http.HandlerFunc(fn)
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Surface *int   `json:"surface,omitempty"`
	Axis    string `json:"axis,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	dvid.Errorf("%s %s: %s\n", r.Method, r.URL, resp.Error)
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// BadRequest writes a 400 error with a formatted message.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// Unauthorized writes a 401 error with a formatted message.
func Unauthorized(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, http.StatusUnauthorized, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// NotFound writes a 404 error with a formatted message.
func NotFound(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, http.StatusNotFound, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// surfaceError writes an error from the surface or storage packages, including the
// error kind, surface index and axis where known.
func surfaceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		NotFound(w, r, "%v", err)
		return
	}
	resp := errorResponse{Error: err.Error(), Kind: surface.KindName(err)}
	var e *surface.Error
	if errors.As(err, &e) {
		if e.Surface >= 0 {
			i := e.Surface
			resp.Surface = &i
		}
		if e.Axis != surface.NoAxis {
			resp.Axis = e.Axis.String()
		}
	}
	status := http.StatusBadRequest
	if resp.Kind == "" {
		status = http.StatusInternalServerError
	}
	writeError(w, r, status, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		BadRequest(w, r, "unable to encode response: %v", err)
		return
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.Write(data)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, webHelp)
}

func listHandler(w http.ResponseWriter, r *http.Request) {
	names, err := store.List()
	if err != nil {
		surfaceError(w, r, err)
		return
	}
	writeJSON(w, r, names)
}

// readDocument decodes a posted JSON or binary surface document, writing an error
// response if it can't.
func readDocument(w http.ResponseWriter, r *http.Request) (*surface.Export, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize()))
	if err != nil {
		BadRequest(w, r, "unable to read request body: %v", err)
		return nil, false
	}
	var exp *surface.Export
	if strings.HasPrefix(r.Header.Get("Content-Type"), surface.BinaryContentType) {
		exp, err = surface.UnmarshalBinaryExport(data)
	} else {
		exp, err = surface.UnmarshalDocumentContext(r.Context(), data, Workers())
	}
	if err != nil {
		surfaceError(w, r, err)
		return nil, false
	}
	return exp, true
}

func postSurfacesHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	if err := storage.CheckName(name); err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	exp, ok := readDocument(w, r)
	if !ok {
		return
	}
	if err := store.Put(name, exp); err != nil {
		surfaceError(w, r, err)
		return
	}
	if user, found := c.Env["user"]; found {
		dvid.Infof("User %v stored %d surfaces as %q\n", user, len(exp.Surfaces), name)
	} else {
		dvid.Infof("Stored %d surfaces as %q\n", len(exp.Surfaces), name)
	}
	writeJSON(w, r, map[string]interface{}{"name": name, "surfaces": len(exp.Surfaces)})
}

func getSurfacesHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	exp, err := store.Get(c.URLParams["name"])
	if err != nil {
		surfaceError(w, r, err)
		return
	}
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		data, err := surface.MarshalExport(exp)
		if err != nil {
			surfaceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", jsonContentType)
		w.Write(data)
	case "msgpack":
		data, err := surface.MarshalBinaryExport(exp)
		if err != nil {
			surfaceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", surface.BinaryContentType)
		w.Write(data)
	default:
		BadRequest(w, r, "unknown format %q, must be json or msgpack", format)
	}
}

func deleteSurfacesHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	if err := store.Delete(name); err != nil {
		surfaceError(w, r, err)
		return
	}
	dvid.Infof("Deleted surface set %q\n", name)
	writeJSON(w, r, map[string]string{"deleted": name})
}

type surfaceInfo struct {
	Index  int              `json:"index"`
	ID     *int64           `json:"id,omitempty"`
	Ranges [3]surface.Range `json:"ranges"`
	Shape  [3]int           `json:"shape"`
	Voxels int              `json:"voxels"`
	Empty  bool             `json:"empty"`
}

type setInfo struct {
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Metadata    surface.Metadata `json:"metadata"`
	NumSurfaces int              `json:"numSurfaces"`
	Bytes       int              `json:"bytes"`
	Memory      string           `json:"memory"`
	Surfaces    []surfaceInfo    `json:"surfaces"`
}

func infoHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	exp, err := store.Get(name)
	if err != nil {
		surfaceError(w, r, err)
		return
	}
	numBytes := size.Of(exp.Surfaces)
	info := setInfo{
		Name:        name,
		Version:     exp.Version.String(),
		Metadata:    exp.Metadata,
		NumSurfaces: len(exp.Surfaces),
		Bytes:       numBytes,
		Memory:      humanize.Bytes(uint64(numBytes)),
		Surfaces:    make([]surfaceInfo, len(exp.Surfaces)),
	}
	for i, s := range exp.Surfaces {
		nx, ny, nz := s.Shape()
		si := surfaceInfo{
			Index:  i,
			Ranges: s.Ranges(),
			Shape:  [3]int{nx, ny, nz},
			Voxels: s.NumVoxels(),
			Empty:  s.Empty(),
		}
		if id, hasID := s.ID(); hasID {
			si.ID = &id
		}
		info.Surfaces[i] = si
	}
	writeJSON(w, r, info)
}

// getSurface returns the surface addressed by the :name and :index URL parameters.
func getSurface(c web.C, w http.ResponseWriter, r *http.Request) (*surface.Surface, bool) {
	exp, err := store.Get(c.URLParams["name"])
	if err != nil {
		surfaceError(w, r, err)
		return nil, false
	}
	indexStr := c.URLParams["index"]
	i, err := strconv.Atoi(indexStr)
	if err != nil || i < 0 || i >= len(exp.Surfaces) {
		writeError(w, r, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("surface index %q not in [0, %d)", indexStr, len(exp.Surfaces)),
			Kind:  surface.KindName(surface.ErrIndexOutOfRange),
		})
		return nil, false
	}
	return exp.Surfaces[i], true
}

func queryAxis(w http.ResponseWriter, r *http.Request) (surface.Axis, bool) {
	axis, err := surface.ParseAxis(r.URL.Query().Get("axis"))
	if err != nil {
		BadRequest(w, r, "%v", err)
		return surface.NoAxis, false
	}
	return axis, true
}

func queryPoint(w http.ResponseWriter, r *http.Request) (dvid.Vector3d, bool) {
	pointStr := r.URL.Query().Get("point")
	if pointStr == "" {
		BadRequest(w, r, "point=x,y,z must be specified")
		return dvid.Vector3d{}, false
	}
	pt, err := dvid.StringToVector3d(pointStr, ",")
	if err != nil {
		BadRequest(w, r, "bad point %q: %v", pointStr, err)
		return dvid.Vector3d{}, false
	}
	return pt, true
}

func centerHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	s, ok := getSurface(c, w, r)
	if !ok {
		return
	}
	axis, ok := queryAxis(w, r)
	if !ok {
		return
	}
	i, err := strconv.Atoi(r.URL.Query().Get("i"))
	if err != nil {
		BadRequest(w, r, "voxel index i must be an integer: %v", err)
		return
	}
	coord, err := s.VoxelCenter(axis, i)
	if err != nil {
		surfaceError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"axis": axis.String(), "index": i, "center": coord})
}

func classifyHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	s, ok := getSurface(c, w, r)
	if !ok {
		return
	}
	pt, ok := queryPoint(w, r)
	if !ok {
		return
	}
	class, err := s.Classify(pt)
	if err != nil {
		surfaceError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"point": pt, "classification": class})
}

func crossingHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	s, ok := getSurface(c, w, r)
	if !ok {
		return
	}
	axis, ok := queryAxis(w, r)
	if !ok {
		return
	}
	pt, ok := queryPoint(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	if all, _ := strconv.ParseBool(query.Get("all")); all {
		it, err := s.Crossings(axis, pt)
		if err != nil {
			surfaceError(w, r, err)
			return
		}
		crossings := it.All()
		if crossings == nil {
			crossings = []float64{}
		}
		writeJSON(w, r, map[string]interface{}{"axis": axis.String(), "crossings": crossings})
		return
	}
	span := s.Range(axis)
	for i, param := range []string{"min", "max"} {
		if str := query.Get(param); str != "" {
			v, err := strconv.ParseFloat(str, 64)
			if err != nil {
				BadRequest(w, r, "bad %s %q: %v", param, str, err)
				return
			}
			span[i] = v
		}
	}
	coord, found, err := s.BoundaryCrossing(axis, pt, span)
	if err != nil {
		surfaceError(w, r, err)
		return
	}
	resp := map[string]interface{}{"axis": axis.String(), "found": found}
	if found {
		resp["crossing"] = coord
	}
	writeJSON(w, r, resp)
}

func validateHandler(w http.ResponseWriter, r *http.Request) {
	exp, ok := readDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, map[string]interface{}{"valid": true, "surfaces": len(exp.Surfaces)})
}
