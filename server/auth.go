package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/surfaces/dvid"
)

// global authorization list of user -> "read", "write", or "readwrite".
var authorizedUsers map[string]string

type authConfig struct {
	AuthFile  string `toml:"auth_file"`
	SecretKey string `toml:"secret_key"`
}

// AuthRequired returns true if mutating requests need a JWT.
func AuthRequired() bool {
	return tc.Auth.SecretKey != ""
}

// GenerateJWT returns a JWT for the user signed with the configured secret key.
func GenerateJWT(user string) (string, error) {
	if !AuthRequired() {
		return "", fmt.Errorf("no secret_key in [auth] configuration")
	}
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["user"] = user

	tokenString, err := token.SignedString([]byte(tc.Auth.SecretKey))
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// isAuthorized is middleware that validates a JWT and sets the c.Env["user"] field
// to the authenticated user.  If no secret key is configured, all requests pass.
func isAuthorized(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !AuthRequired() {
			h.ServeHTTP(w, r)
			return
		}
		reqToken := r.Header.Get("Authorization")
		if len(reqToken) == 0 {
			Unauthorized(w, r, "JWT required via Authorization in request header")
			return
		}
		splitToken := strings.Split(reqToken, "Bearer")
		if len(splitToken) != 2 {
			Unauthorized(w, r, "bearer not in proper format")
			return
		}
		reqToken = strings.TrimSpace(splitToken[1])
		if len(reqToken) == 0 {
			Unauthorized(w, r, "requests require JWT authentication")
			return
		}
		token, err := jwt.Parse(reqToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
			}
			return []byte(tc.Auth.SecretKey), nil
		})
		if err != nil {
			Unauthorized(w, r, "error parsing JWT: %v", err)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			Unauthorized(w, r, "failed authorization")
			return
		}
		user, ok := claims["user"].(string)
		if !ok {
			Unauthorized(w, r, "user %v is not a simple string", claims["user"])
			return
		}
		if !globalIsAuthorized(user, r.Method) {
			Unauthorized(w, r, "user %q is not authorized", user)
			return
		}
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		c.Env["user"] = user
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func loadAuthFile() error {
	authorizedUsers = nil
	if len(tc.Auth.AuthFile) == 0 {
		if AuthRequired() {
			dvid.Infof("No authorization file found.  Any user with a valid JWT may modify surface sets.\n")
		}
		return nil
	}
	data, err := os.ReadFile(tc.Auth.AuthFile)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &authorizedUsers); err != nil {
		return fmt.Errorf("bad authorization file %q: %v", tc.Auth.AuthFile, err)
	}
	dvid.Infof("Loaded %d authorized users from %s\n", len(authorizedUsers), tc.Auth.AuthFile)
	return nil
}

// globalIsAuthorized returns true if the user is in our authorization file or if
// there is no authorization file.
func globalIsAuthorized(user string, httpMethod string) bool {
	if authorizedUsers == nil {
		return true
	}
	method := strings.ToLower(httpMethod)
	readReq := method == "get" || method == "head"
	priv, found := authorizedUsers[user]
	if !found {
		priv, found = authorizedUsers["*"]
		if !found {
			return false
		}
	}
	switch priv {
	case "readwrite":
		return true
	case "read":
		return readReq
	case "write":
		return !readReq
	default:
		dvid.Errorf("Authorized user %q has unparsable privilege %q\n", user, priv)
		return false
	}
}
