package context

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"redbud/internal/platform/models"
)

type Key string

const (
	Claims Key = "claims"
	User   Key = "user"
	Params Key = "params"
)

// CurrentUser returns the authenticated user placed in the request
// context by the auth middleware, or nil.
func CurrentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(User).(*models.User)
	return u
}

// Param reads a path parameter injected by the router wrapper.
func Param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(Params).(httprouter.Params)
	return ps.ByName(name)
}
