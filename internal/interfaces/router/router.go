package router

import (
	analyticssvc "realty-backend/internal/application/analytics"
	authsvc "realty-backend/internal/application/auth"
	contactsvc "realty-backend/internal/application/contacts"
	emailsvc "realty-backend/internal/application/emails"
	eventsvc "realty-backend/internal/application/events"
	"realty-backend/internal/application/geocoding"
	healthsvc "realty-backend/internal/application/health"
	listsvc "realty-backend/internal/application/listings"
	"realty-backend/internal/application/querycache"
	"realty-backend/internal/config"
	"realty-backend/internal/infrastructure/database"
	analyticshandler "realty-backend/internal/interfaces/handlers/analytics"
	authhandler "realty-backend/internal/interfaces/handlers/auth"
	contacthandler "realty-backend/internal/interfaces/handlers/contacts"
	eventhandler "realty-backend/internal/interfaces/handlers/events"
	healthhandler "realty-backend/internal/interfaces/handlers/health"
	listhandler "realty-backend/internal/interfaces/handlers/listings"
	"realty-backend/internal/middleware"
	"realty-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const cacheNamespace = "cache:"

// Deps are the opened connections the routes are built on. DB may be nil, in which
// case only health and auth routes are mounted.
type Deps struct {
	DB  *gorm.DB
	Rdb *redis.Client
	// Geocoder and Mailer override the clients built from config (tests).
	Geocoder geocoding.Geocoder
	Mailer   emailsvc.Sender
}

// CreateApp opens Redis and the database from cfg and builds the Fiber app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	_, rdb, err := middleware.Session(middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		log.Warn().Msg("no database URL configured: listing, event and contact routes are disabled")
	}

	return NewApp(cfg, Deps{DB: db, Rdb: rdb}), db, rdb, nil
}

// NewApp registers global middleware and every route on top of deps.
func NewApp(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})
	rdb, db := deps.Rdb, deps.DB

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.SessionWithClient(rdb))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	cache := newCache(cfg, rdb)
	geocoder := deps.Geocoder
	if geocoder == nil && cfg.GeocoderURL != "" {
		geocoder = &geocoding.NominatimClient{BaseURL: cfg.GeocoderURL, UserAgent: cfg.GeocoderUserAgent}
	}
	mailer := deps.Mailer
	if mailer == nil && cfg.SendinblueAPIKey != "" {
		mailer = &emailsvc.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom}
	}

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
		Options: healthsvc.Options{
			Cache:  cache,
			Probes: []healthsvc.Probe{{Name: "geocoder", URL: cfg.GeocoderURL}},
		},
	}
	if db != nil {
		hh.DB = &database.Pinger{DB: db}
	}
	app.Get("/", hh.JSON)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/health/reset", hh.Reset)

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	var userFinder authsvc.UserFinder
	if db != nil {
		userFinder = &authsvc.GormUserFinder{DB: db}
	}
	ah := &authhandler.Handlers{
		UserFinder: userFinder,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	if db == nil {
		return app
	}

	ls := &listsvc.Service{DB: db, Cache: cache, Geocoder: geocoder}
	es := &eventsvc.Service{DB: db}
	cs := &contactsvc.Service{DB: db, Mailer: mailer, NotifyEmail: cfg.LeadNotifyEmail, SiteURL: cfg.SiteURL}
	as := &analyticssvc.Service{Listings: ls, Events: es}

	lh := &listhandler.Handlers{Service: ls}
	eh := &eventhandler.Handlers{Service: es}
	ch := &contacthandler.Handlers{Service: cs}
	anh := &analyticshandler.Handlers{Service: as}

	api := app.Group("/api/v1")
	api.Get("/listings", lh.ListPublished)
	api.Get("/listings/:slug", lh.GetBySlug)
	api.Post("/events", eh.Track)
	api.Post("/contact-requests", ch.Create)

	admin := api.Group("/admin", middleware.RequireAuth())
	al := admin.Group("/listings", middleware.AuthorizePermission(constants.ManageListings))
	al.Get("/", lh.ListOwned)
	al.Post("/", lh.Create)
	al.Get("/:id", lh.GetOwned)
	al.Put("/:id", lh.Update)
	al.Delete("/:id", lh.Delete)
	admin.Get("/contact-requests", middleware.AuthorizePermission(constants.ViewLeads), ch.List)
	admin.Patch("/contact-requests/:id", middleware.AuthorizePermission(constants.ManageLeads), ch.UpdateStatus)
	admin.Get("/analytics", middleware.AuthorizePermission(constants.ViewAnalytics), anh.Dashboard)

	return app
}

func newCache(cfg *config.Config, rdb *redis.Client) *querycache.Cache {
	if cfg.CacheBackend == config.CacheBackendMemory || rdb == nil {
		return querycache.New(querycache.NewMemoryStore(), cfg.CacheTTL)
	}
	return querycache.New(&querycache.RedisStore{Client: rdb, Namespace: cacheNamespace}, cfg.CacheTTL)
}
