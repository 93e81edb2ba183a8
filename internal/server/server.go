package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"medinearby/internal/catalog"
	"medinearby/internal/chat"
	"medinearby/internal/geo"
	"medinearby/internal/jobs"
	"medinearby/internal/viewmodel"
)

// IPLocator builds a geolocation platform for a client address.
type IPLocator interface {
	ForIP(ip string) geo.Platform
}

type Options struct {
	SessionSecret string
	LoginUser     string
	// LoginPass empty disables the login gate.
	LoginPass string

	UploadDir    string
	ImportSource string
}

type Server struct {
	vm        *viewmodel.ViewModel
	merger    *catalog.Merger
	responder *chat.Responder
	jobs      *jobs.Store
	ipLocator IPLocator
	opts      Options
}

// New creates the HTTP surface. ipLocator may be nil.
func New(vm *viewmodel.ViewModel, merger *catalog.Merger, responder *chat.Responder, store *jobs.Store, ipLocator IPLocator, opts Options) *Server {
	return &Server{
		vm:        vm,
		merger:    merger,
		responder: responder,
		jobs:      store,
		ipLocator: ipLocator,
		opts:      opts,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	store := cookie.NewStore([]byte(s.opts.SessionSecret))
	r.Use(sessions.Sessions("medinearby", store))

	r.GET("/login", s.loginPage)
	r.POST("/login", s.login)
	r.GET("/logout", s.logout)

	api := r.Group("/api")
	api.Use(s.authRequired)
	{
		api.GET("/me", s.me)
		api.GET("/categories", s.categories)
		api.GET("/state", s.state)
		api.PUT("/criteria/query", s.setQuery)
		api.PUT("/criteria/category", s.setCategory)
		api.POST("/locate", s.locate)
		api.POST("/select", s.selectProvider)
		api.DELETE("/select", s.clearSelection)
		api.GET("/stream", s.stream)
		api.POST("/chat", s.chat)
		api.POST("/import", s.importWorkbook)
		api.GET("/jobs/:id", s.job)
		api.GET("/export", s.export)
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func respondWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg})
}

func (s *Server) authEnabled() bool {
	return s.opts.LoginPass != ""
}

func (s *Server) authRequired(c *gin.Context) {
	if !s.authEnabled() {
		c.Set("user", s.opts.LoginUser)
		c.Next()
		return
	}
	session := sessions.Default(c)
	user, _ := session.Get("user").(string)
	if user == "" {
		respondWithError(c, http.StatusUnauthorized, "login required")
		return
	}
	c.Set("user", user)
	c.Next()
}

func (s *Server) loginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "login": "POST username and password to /login"})
}

type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "username and password are required")
		return
	}
	if !s.authEnabled() || req.Username != s.opts.LoginUser || req.Password != s.opts.LoginPass {
		respondWithError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	session := sessions.Default(c)
	session.Set("user", req.Username)
	if err := session.Save(); err != nil {
		log.Error().Err(err).Msg("failed to save session")
		respondWithError(c, http.StatusInternalServerError, "login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "welcome": welcome(req.Username)})
}

func (s *Server) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		log.Error().Err(err).Msg("failed to clear session")
		respondWithError(c, http.StatusInternalServerError, "logout failed")
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func welcome(user string) string {
	return "Welcome back, " + user
}

func (s *Server) me(c *gin.Context) {
	user := c.GetString("user")
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user, "welcome": welcome(user), "greeting": chat.Greeting})
}
