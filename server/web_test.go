package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janelia-flyem/surfaces/surface"
)

// cubeDoc returns a JSON list with one 5x5x5 cube: a single interior 1 surrounded by
// 0s within a shell of -1s, spanning [0,4] along each axis.
func cubeDoc(t *testing.T) []byte {
	mask := make([][][]float64, 5)
	for z := range mask {
		mask[z] = make([][]float64, 5)
		for y := range mask[z] {
			mask[z][y] = make([]float64, 5)
			for x := range mask[z][y] {
				switch {
				case x == 2 && y == 2 && z == 2:
					mask[z][y][x] = 1
				case x == 0 || x == 4 || y == 0 || y == 4 || z == 0 || z == 4:
					mask[z][y][x] = -1
				}
			}
		}
	}
	s, err := surface.New(surface.Range{0, 4}, surface.Range{0, 4}, surface.Range{0, 4}, mask)
	if err != nil {
		t.Fatalf("couldn't make cube: %v\n", err)
	}
	data, err := surface.Marshal([]*surface.Surface{s.WithID(7)})
	if err != nil {
		t.Fatalf("couldn't marshal cube: %v\n", err)
	}
	return data
}

func decodeJSON(t *testing.T, data []byte) map[string]interface{} {
	var resp map[string]interface{}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("bad JSON response %s: %v\n", data, err)
	}
	return resp
}

func TestHelp(t *testing.T) {
	if err := OpenTest(); err != nil {
		t.Fatalf("can't open test server: %v\n", err)
	}
	defer CloseTest()

	r := TestHTTP(t, "GET", WebAPIPath+"help", nil)
	if !strings.Contains(string(r), "/api/surfaces") {
		t.Errorf("help doesn't describe the API: %s\n", r)
	}
	TestBadHTTP(t, "GET", WebAPIPath+"nonexistent", nil, http.StatusNotFound)
}

func TestSurfacesAPI(t *testing.T) {
	if err := OpenTest(); err != nil {
		t.Fatalf("can't open test server: %v\n", err)
	}
	defer CloseTest()

	apiStr := WebAPIPath + "surfaces/cube"
	r := TestHTTP(t, "POST", apiStr, bytes.NewBuffer(cubeDoc(t)))
	resp := decodeJSON(t, r)
	if resp["name"] != "cube" || resp["surfaces"] != 1.0 {
		t.Errorf("bad POST response: %s\n", r)
	}

	r = TestHTTP(t, "GET", WebAPIPath+"surfaces", nil)
	var names []string
	if err := json.Unmarshal(r, &names); err != nil {
		t.Fatalf("bad list response %s: %v\n", r, err)
	}
	if len(names) != 1 || names[0] != "cube" {
		t.Errorf("expected [cube], got %v\n", names)
	}

	r = TestHTTP(t, "GET", apiStr, nil)
	exp, err := surface.UnmarshalExport(r)
	if err != nil {
		t.Fatalf("bad stored export %s: %v\n", r, err)
	}
	if len(exp.Surfaces) != 1 {
		t.Fatalf("expected 1 stored surface, got %d\n", len(exp.Surfaces))
	}
	if id, _ := exp.Surfaces[0].ID(); id != 7 {
		t.Errorf("expected id 7, got %d\n", id)
	}

	r = TestHTTP(t, "GET", apiStr+"/info", nil)
	var info setInfo
	if err := json.Unmarshal(r, &info); err != nil {
		t.Fatalf("bad info response %s: %v\n", r, err)
	}
	if info.NumSurfaces != 1 || info.Surfaces[0].Shape != [3]int{5, 5, 5} || info.Surfaces[0].Voxels != 125 {
		t.Errorf("bad info: %s\n", r)
	}
	if info.Bytes <= 0 || info.Memory == "" {
		t.Errorf("expected memory footprint in info: %s\n", r)
	}

	r = TestHTTP(t, "GET", apiStr+"/0/center?axis=y&i=3", nil)
	if resp := decodeJSON(t, r); resp["center"] != 3.0 {
		t.Errorf("expected center 3, got %s\n", r)
	}

	tests := []struct {
		point string
		want  string
	}{
		{"2,2,2", "inside"},
		{"0,2,2", "outside"},
		{"1,1,1.5", "boundary"},
	}
	for _, test := range tests {
		r = TestHTTP(t, "GET", apiStr+"/0/classify?point="+test.point, nil)
		if resp := decodeJSON(t, r); resp["classification"] != test.want {
			t.Errorf("point %s: expected %s, got %s\n", test.point, test.want, r)
		}
	}

	r = TestHTTP(t, "GET", apiStr+"/0/crossing?axis=z&point=2,2,2", nil)
	resp = decodeJSON(t, r)
	if resp["found"] != true || resp["crossing"] != 0.5 {
		t.Errorf("expected crossing at 0.5, got %s\n", r)
	}
	r = TestHTTP(t, "GET", apiStr+"/0/crossing?axis=x&point=2,2,2&min=1", nil)
	if resp := decodeJSON(t, r); resp["crossing"] != 3.5 {
		t.Errorf("expected crossing at 3.5, got %s\n", r)
	}
	r = TestHTTP(t, "GET", apiStr+"/0/crossing?axis=x&point=2,2,2&min=1&max=3", nil)
	if resp := decodeJSON(t, r); resp["found"] != false {
		t.Errorf("expected no crossing in [1,3], got %s\n", r)
	}
	r = TestHTTP(t, "GET", apiStr+"/0/crossing?axis=y&point=2,2,2&all=true", nil)
	var all struct {
		Crossings []float64
	}
	if err := json.Unmarshal(r, &all); err != nil {
		t.Fatalf("bad crossing response %s: %v\n", r, err)
	}
	if len(all.Crossings) != 2 || all.Crossings[0] != 0.5 || all.Crossings[1] != 3.5 {
		t.Errorf("expected crossings [0.5 3.5], got %s\n", r)
	}

	// query errors
	r = TestBadHTTP(t, "GET", apiStr+"/0/classify?point=2,2,9", nil, http.StatusBadRequest)
	if resp := decodeJSON(t, r); resp["kind"] != "OutOfBounds" || resp["axis"] != "z" {
		t.Errorf("expected OutOfBounds along z, got %s\n", r)
	}
	r = TestBadHTTP(t, "GET", apiStr+"/0/center?axis=x&i=5", nil, http.StatusBadRequest)
	if resp := decodeJSON(t, r); resp["kind"] != "IndexOutOfRange" {
		t.Errorf("expected IndexOutOfRange, got %s\n", r)
	}
	r = TestBadHTTP(t, "GET", apiStr+"/1/center?axis=x&i=0", nil, http.StatusBadRequest)
	if resp := decodeJSON(t, r); resp["kind"] != "IndexOutOfRange" {
		t.Errorf("expected IndexOutOfRange for surface 1, got %s\n", r)
	}
	TestBadHTTP(t, "GET", apiStr+"/0/crossing?axis=w&point=2,2,2", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", apiStr+"/0/classify?point=2,2", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", apiStr+"/0/crossing?axis=x&point=2,2,2&min=3&max=1", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", apiStr+"?format=xml", nil, http.StatusBadRequest)

	TestHTTP(t, "DELETE", apiStr, nil)
	TestBadHTTP(t, "GET", apiStr, nil, http.StatusNotFound)
	TestBadHTTP(t, "DELETE", apiStr, nil, http.StatusNotFound)
	TestBadHTTP(t, "GET", apiStr+"/info", nil, http.StatusNotFound)
}

func TestPostMalformed(t *testing.T) {
	if err := OpenTest(); err != nil {
		t.Fatalf("can't open test server: %v\n", err)
	}
	defer CloseTest()

	doc := `[
		{"xRange": [0, 1], "yRange": [0, 0], "zRange": [0, 0], "mask": [[[1, -1]]]},
		{"xRange": [0, 1], "yRange": [0, 1], "zRange": [0, 0], "mask": [[[1, -1], [1]]]}
	]`
	apiStr := WebAPIPath + "surfaces/bad"
	r := TestBadHTTP(t, "POST", apiStr, strings.NewReader(doc), http.StatusBadRequest)
	resp := decodeJSON(t, r)
	if resp["kind"] != "MalformedMask" || resp["surface"] != 1.0 || resp["axis"] != "x" {
		t.Errorf("expected MalformedMask at surface 1 along x, got %s\n", r)
	}
	// nothing was stored
	TestBadHTTP(t, "GET", apiStr, nil, http.StatusNotFound)

	r = TestBadHTTP(t, "POST", apiStr, strings.NewReader(`{"xRange": [0, 1]}`), http.StatusBadRequest)
	if resp := decodeJSON(t, r); resp["kind"] != "MalformedDocument" {
		t.Errorf("expected MalformedDocument, got %s\n", r)
	}

	r = TestHTTP(t, "POST", WebAPIPath+"validate", bytes.NewBuffer(cubeDoc(t)))
	if resp := decodeJSON(t, r); resp["valid"] != true || resp["surfaces"] != 1.0 {
		t.Errorf("expected valid document, got %s\n", r)
	}
	TestBadHTTP(t, "POST", WebAPIPath+"validate", strings.NewReader(doc), http.StatusBadRequest)
	r = TestHTTP(t, "GET", WebAPIPath+"surfaces", nil)
	if string(r) != "[]" {
		t.Errorf("validate shouldn't store anything, got %s\n", r)
	}
}

func TestMsgpackAPI(t *testing.T) {
	if err := OpenTest(); err != nil {
		t.Fatalf("can't open test server: %v\n", err)
	}
	defer CloseTest()

	TestHTTP(t, "POST", WebAPIPath+"surfaces/cube", bytes.NewBuffer(cubeDoc(t)))
	resp := TestHTTPResponse(t, "GET", WebAPIPath+"surfaces/cube?format=msgpack", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("bad msgpack GET (%d): %s\n", resp.Code, resp.Body.String())
	}
	if ctype := resp.Header().Get("Content-Type"); ctype != surface.BinaryContentType {
		t.Errorf("expected msgpack content type, got %q\n", ctype)
	}
	binary := resp.Body.Bytes()

	req, err := http.NewRequest("POST", WebAPIPath+"surfaces/copy", bytes.NewReader(binary))
	if err != nil {
		t.Fatalf("bad request: %v\n", err)
	}
	req.Header.Set("Content-Type", surface.BinaryContentType)
	w := TestHTTPResponseFromRequest(req)
	if w.Code != http.StatusOK {
		t.Fatalf("bad msgpack POST (%d): %s\n", w.Code, w.Body.String())
	}
	r := TestHTTP(t, "GET", WebAPIPath+"surfaces/copy/0/classify?point=2,2,2", nil)
	if resp := decodeJSON(t, r); resp["classification"] != "inside" {
		t.Errorf("expected inside after msgpack round trip, got %s\n", r)
	}
	r = TestHTTP(t, "GET", WebAPIPath+"surfaces/copy/0/classify?point=0,2,2", nil)
	if resp := decodeJSON(t, r); resp["classification"] != "outside" {
		t.Errorf("expected outside after msgpack round trip, got %s\n", r)
	}
}

func TestAuthorization(t *testing.T) {
	if err := OpenTest(); err != nil {
		t.Fatalf("can't open test server: %v\n", err)
	}
	defer CloseTest()
	tc.Auth.SecretKey = "testing secret"

	apiStr := WebAPIPath + "surfaces/cube"
	TestBadHTTP(t, "POST", apiStr, bytes.NewBuffer(cubeDoc(t)), http.StatusUnauthorized)

	post := func(token string) int {
		req, err := http.NewRequest("POST", apiStr, bytes.NewBuffer(cubeDoc(t)))
		if err != nil {
			t.Fatalf("bad request: %v\n", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return TestHTTPResponseFromRequest(req).Code
	}
	if code := post("not-a-token"); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d\n", code)
	}
	token, err := GenerateJWT("alice")
	if err != nil {
		t.Fatalf("couldn't generate JWT: %v\n", err)
	}
	if code := post(token); code != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d\n", code)
	}
	// reads don't need a token
	TestHTTP(t, "GET", apiStr+"/info", nil)
	TestBadHTTP(t, "DELETE", apiStr, nil, http.StatusUnauthorized)

	// restrict users with an authorization file
	authFile := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(authFile, []byte(`{"bob": "read"}`), 0644); err != nil {
		t.Fatalf("couldn't write auth file: %v\n", err)
	}
	tc.Auth.AuthFile = authFile
	if err := loadAuthFile(); err != nil {
		t.Fatalf("couldn't load auth file: %v\n", err)
	}
	if code := post(token); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for user not in auth file, got %d\n", code)
	}
	bobToken, _ := GenerateJWT("bob")
	if code := post(bobToken); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for read-only user, got %d\n", code)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.toml")
	config := `
[server]
httpAddress = "localhost:9000"
corsDomains = ["http://example.org"]
workers = 3

[logging]
logfile = "logs/surfaces.log"
max_log_size = 10
max_log_age = 7

[store]
path = "db"
compression = "lz4"

[cache]
size = 16
`
	if err := os.WriteFile(configFile, []byte(config), 0644); err != nil {
		t.Fatalf("couldn't write config: %v\n", err)
	}
	if err := LoadConfig(configFile); err != nil {
		t.Fatalf("couldn't load config: %v\n", err)
	}
	defer CloseTest()

	if HTTPAddress() != "localhost:9000" || Workers() != 3 || CacheSize() != 16 {
		t.Errorf("bad server settings: %+v\n", tc)
	}
	if tc.Store.Path != filepath.Join(dir, "db") {
		t.Errorf("expected absolute store path, got %q\n", tc.Store.Path)
	}
	logConfig := LogConfig()
	if logConfig.Logfile != filepath.Join(dir, "logs/surfaces.log") || logConfig.MaxSize != 10 || logConfig.MaxAge != 7 {
		t.Errorf("bad logging config: %+v\n", logConfig)
	}
	if MaxBodySize() != DefaultMaxBodySize<<20 {
		t.Errorf("expected default max body size, got %d\n", MaxBodySize())
	}
	if ConfigLocation() != configFile {
		t.Errorf("expected config location %q, got %q\n", configFile, ConfigLocation())
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[store]\ncompression = \"rar\"\n"), 0644); err != nil {
		t.Fatalf("couldn't write config: %v\n", err)
	}
	if err := LoadConfig(bad); err == nil {
		t.Errorf("expected error for unknown compression\n")
	}
	if err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("expected error for missing config file\n")
	}
}

func TestCORS(t *testing.T) {
	if err := OpenTest(); err != nil {
		t.Fatalf("can't open test server: %v\n", err)
	}
	defer CloseTest()
	tc.Server.CorsDomains = []string{"http://example.org"}

	req, err := http.NewRequest("GET", WebAPIPath+"surfaces", nil)
	if err != nil {
		t.Fatalf("bad request: %v\n", err)
	}
	req.Header.Set("Origin", "http://example.org")
	w := TestHTTPResponseFromRequest(req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.org" {
		t.Errorf("expected CORS header for allowed origin, got %q\n", got)
	}
}
