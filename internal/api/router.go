package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "redbud/internal/api/context"
	"redbud/internal/api/handlers"
	"redbud/internal/api/middleware"
)

type Dependencies struct {
	AuthHandler    *handlers.AuthHandler
	OrgHandler     *handlers.OrgHandler
	InviteHandler  *handlers.InviteHandler
	FieldHandler   *handlers.FieldHandler
	RecordHandler  *handlers.RecordHandler
	UserHandler    *handlers.UserHandler
	HealthHandler  *handlers.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	auth := deps.AuthMiddleware.Handle
	read := deps.RateLimiter.Limit("api_read")
	write := deps.RateLimiter.Limit("api_write")

	router.GET("/health", wrap(deps.HealthHandler.Check))

	// Authentication
	router.POST("/api/v1/auth/signup", chain(deps.AuthHandler.Signup, write))
	router.POST("/api/v1/auth/login", chain(deps.AuthHandler.Login, write))
	router.GET("/api/v1/auth/me", chain(deps.AuthHandler.Me, auth, read))

	// Invite validation is public so a code can be checked before signup.
	router.GET("/api/v1/invites/:code", chain(deps.InviteHandler.Validate, read))
	router.POST("/api/v1/invites/:code/accept", chain(deps.InviteHandler.Accept, auth, write))
	router.DELETE("/api/v1/invites/:code", chain(deps.InviteHandler.Revoke, auth, write))

	// Organizations and membership
	router.POST("/api/v1/organizations", chain(deps.OrgHandler.Create, auth, write))
	router.GET("/api/v1/organizations", chain(deps.OrgHandler.List, auth, read))
	router.GET("/api/v1/organizations/:org_id", chain(deps.OrgHandler.Get, auth, read))
	router.GET("/api/v1/organizations/:org_id/members", chain(deps.OrgHandler.ListMembers, auth, read))
	router.POST("/api/v1/organizations/:org_id/members", chain(deps.OrgHandler.AddMember, auth, write))
	router.PATCH("/api/v1/organizations/:org_id/members/:membership_id", chain(deps.OrgHandler.UpdateMemberRole, auth, write))
	router.DELETE("/api/v1/organizations/:org_id/members/:membership_id", chain(deps.OrgHandler.RemoveMember, auth, write))
	router.GET("/api/v1/organizations/:org_id/audit", chain(deps.OrgHandler.Audit, auth, read))

	// Organization invites
	router.POST("/api/v1/organizations/:org_id/invites", chain(deps.InviteHandler.Create, auth, write))
	router.GET("/api/v1/organizations/:org_id/invites", chain(deps.InviteHandler.List, auth, read))

	// Custom field definitions
	router.POST("/api/v1/organizations/:org_id/fields", chain(deps.FieldHandler.Create, auth, write))
	router.GET("/api/v1/organizations/:org_id/fields", chain(deps.FieldHandler.List, auth, read))
	router.GET("/api/v1/fields/:field_id", chain(deps.FieldHandler.Get, auth, read))
	router.PATCH("/api/v1/fields/:field_id", chain(deps.FieldHandler.Update, auth, write))
	router.DELETE("/api/v1/fields/:field_id", chain(deps.FieldHandler.Delete, auth, write))

	// Projects
	router.POST("/api/v1/organizations/:org_id/projects", chain(deps.RecordHandler.CreateProject, auth, write))
	router.GET("/api/v1/organizations/:org_id/projects", chain(deps.RecordHandler.ListProjects, auth, read))
	router.GET("/api/v1/projects/:project_id", chain(deps.RecordHandler.GetProject, auth, read))
	router.PATCH("/api/v1/projects/:project_id", chain(deps.RecordHandler.UpdateProject, auth, write))
	router.DELETE("/api/v1/projects/:project_id", chain(deps.RecordHandler.DeleteProject, auth, write))

	// Species
	router.POST("/api/v1/organizations/:org_id/species", chain(deps.RecordHandler.CreateSpecies, auth, write))
	router.GET("/api/v1/organizations/:org_id/species", chain(deps.RecordHandler.ListSpecies, auth, read))
	router.GET("/api/v1/species/:species_id", chain(deps.RecordHandler.GetSpecies, auth, read))
	router.PATCH("/api/v1/species/:species_id", chain(deps.RecordHandler.UpdateSpecies, auth, write))
	router.DELETE("/api/v1/species/:species_id", chain(deps.RecordHandler.DeleteSpecies, auth, write))

	// Accessions
	router.POST("/api/v1/organizations/:org_id/accessions", chain(deps.RecordHandler.CreateAccession, auth, write))
	router.GET("/api/v1/organizations/:org_id/accessions", chain(deps.RecordHandler.ListAccessions, auth, read))
	router.GET("/api/v1/accessions/:accession_id", chain(deps.RecordHandler.GetAccession, auth, read))
	router.PATCH("/api/v1/accessions/:accession_id", chain(deps.RecordHandler.UpdateAccession, auth, write))
	router.DELETE("/api/v1/accessions/:accession_id", chain(deps.RecordHandler.DeleteAccession, auth, write))

	// Plants
	router.POST("/api/v1/accessions/:accession_id/plants", chain(deps.RecordHandler.CreatePlant, auth, write))
	router.GET("/api/v1/accessions/:accession_id/plants", chain(deps.RecordHandler.ListPlants, auth, read))
	router.GET("/api/v1/plants/:plant_id", chain(deps.RecordHandler.GetPlant, auth, read))
	router.PATCH("/api/v1/plants/:plant_id", chain(deps.RecordHandler.UpdatePlant, auth, write))
	router.DELETE("/api/v1/plants/:plant_id", chain(deps.RecordHandler.DeletePlant, auth, write))

	// Event types and plant events
	router.POST("/api/v1/organizations/:org_id/event-types", chain(deps.RecordHandler.CreateEventType, auth, write))
	router.GET("/api/v1/organizations/:org_id/event-types", chain(deps.RecordHandler.ListEventTypes, auth, read))
	router.DELETE("/api/v1/event-types/:event_type_id", chain(deps.RecordHandler.DeleteEventType, auth, write))
	router.POST("/api/v1/plants/:plant_id/events", chain(deps.RecordHandler.CreatePlantEvent, auth, write))
	router.GET("/api/v1/plants/:plant_id/events", chain(deps.RecordHandler.ListPlantEvents, auth, read))

	// Site administration
	router.POST("/api/v1/admin/invites", chain(deps.InviteHandler.CreateSiteAdmin, auth, write))
	router.GET("/api/v1/admin/invites", chain(deps.InviteHandler.ListSiteAdmin, auth, read))
	router.GET("/api/v1/admin/users", chain(deps.UserHandler.List, auth, read))

	return router
}

// chain applies middlewares right to left around the handler.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap converts to httprouter.Handle, injecting path params into the
// request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
