package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david/grant-matcher/internal/auth"
	"github.com/david/grant-matcher/internal/matching"
	"github.com/david/grant-matcher/internal/models"
)

type Server struct {
	Engine *matching.Engine
	Echo   *echo.Echo

	policy *bluemonday.Policy
}

func NewServer(engine *matching.Engine, corsOrigins []string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Engine: engine,
		Echo:   e,
		policy: bluemonday.UGCPolicy(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1", auth.OptionalMiddleware)
	api.POST("/search", s.handleSearch)
	api.GET("/grants", s.handleListGrants)
	api.POST("/grants/filter", s.handleFilterGrants)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type searchRequest struct {
	Query                 string              `json:"query"`
	UseProfilePreferences bool                `json:"use_profile_preferences"`
	Filters               *models.HardFilters `json:"filters"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	sr := matching.SearchRequest{
		Query:                 req.Query,
		Filters:               req.Filters,
		UseProfilePreferences: req.UseProfilePreferences,
	}
	if id, ok := auth.UserIDFromContext(c); ok {
		sr.UserID = &id
	}

	res, err := s.Engine.SearchGrants(c.Request().Context(), sr)
	if err != nil {
		return s.engineError(c, err)
	}
	s.sanitize(res.Grants)
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListGrants(c echo.Context) error {
	grants, err := s.Engine.GetAllGrants(c.Request().Context())
	if err != nil {
		return s.engineError(c, err)
	}
	s.sanitize(grants)
	return c.JSON(http.StatusOK, grants)
}

func (s *Server) handleFilterGrants(c echo.Context) error {
	var filters models.HardFilters
	if err := c.Bind(&filters); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid filters"})
	}

	grants, err := s.Engine.FilterGrantsManually(c.Request().Context(), filters)
	if err != nil {
		return s.engineError(c, err)
	}
	s.sanitize(grants)
	return c.JSON(http.StatusOK, grants)
}

func (s *Server) engineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, matching.ErrEmptyQuery):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, matching.ErrFetchFailed):
		log.Printf("[api] %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"error": "Grant data is temporarily unavailable, please retry",
			"retry": true,
		})
	default:
		log.Printf("[api] %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal error"})
	}
}

// sanitize strips unsafe markup from scraped grant text before it leaves
// the service.
func (s *Server) sanitize(grants []models.ScoredGrant) {
	for i := range grants {
		grants[i].Description = strings.TrimSpace(s.policy.Sanitize(grants[i].Description))
		grants[i].Eligibility = strings.TrimSpace(s.policy.Sanitize(grants[i].Eligibility))
	}
}
