package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"anoa.com/runclub/internal/config"
	"anoa.com/runclub/internal/job"
	"anoa.com/runclub/internal/middleware"
	"anoa.com/runclub/pkg/changefeed"
	"anoa.com/runclub/pkg/jwtauth"
	"anoa.com/runclub/pkg/logger"
	"anoa.com/runclub/pkg/ratelimiter"
	"anoa.com/runclub/pkg/storage"

	adminHttp "anoa.com/runclub/internal/modules/admin/delivery/http"
	adminService "anoa.com/runclub/internal/modules/admin/service"

	bookingHttp "anoa.com/runclub/internal/modules/booking/delivery/http"
	bookingRepo "anoa.com/runclub/internal/modules/booking/repository"
	bookingService "anoa.com/runclub/internal/modules/booking/service"

	commentHttp "anoa.com/runclub/internal/modules/comment/delivery/http"
	commentRepo "anoa.com/runclub/internal/modules/comment/repository"
	commentService "anoa.com/runclub/internal/modules/comment/service"

	emailHttp "anoa.com/runclub/internal/modules/email/delivery/http"
	emailService "anoa.com/runclub/internal/modules/email/service"

	eventHttp "anoa.com/runclub/internal/modules/event/delivery/http"
	eventRepo "anoa.com/runclub/internal/modules/event/repository"
	eventService "anoa.com/runclub/internal/modules/event/service"

	leaderboardHttp "anoa.com/runclub/internal/modules/leaderboard/delivery/http"
	leaderboardService "anoa.com/runclub/internal/modules/leaderboard/service"

	notiHttp "anoa.com/runclub/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/runclub/internal/modules/notification/repository"
	notifService "anoa.com/runclub/internal/modules/notification/service"

	paymentHttp "anoa.com/runclub/internal/modules/payment/delivery/http"
	"anoa.com/runclub/internal/modules/payment/gateway"
	paymentService "anoa.com/runclub/internal/modules/payment/service"

	postHttp "anoa.com/runclub/internal/modules/post/delivery/http"
	postRepo "anoa.com/runclub/internal/modules/post/repository"
	postService "anoa.com/runclub/internal/modules/post/service"

	realtimeHttp "anoa.com/runclub/internal/modules/realtime/delivery/http"

	searchHttp "anoa.com/runclub/internal/modules/search/delivery/http"
	searchService "anoa.com/runclub/internal/modules/search/service"

	userHttp "anoa.com/runclub/internal/modules/user/delivery/http"
	userRepo "anoa.com/runclub/internal/modules/user/repository"
	userService "anoa.com/runclub/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	log         logrus.FieldLogger

	leaderboard *leaderboardService.Engine
	poller      *paymentService.Poller
	scheduler   *job.Scheduler
	ipLimiter   *middleware.IPRateLimiter
}

func NewServer(ctx context.Context, cfg *config.Config, db *gorm.DB, redisClient *redis.Client, log logrus.FieldLogger) (*Server, error) {
	imageStorage, err := storage.New(ctx, storage.Options{
		Driver:           cfg.StorageDriver,
		CloudinaryFolder: cfg.CloudinaryUploadFolder,
		MinioEndpoint:    cfg.MinioEndpoint,
		MinioAccessKey:   cfg.MinioAccessKey,
		MinioSecretKey:   cfg.MinioSecretKey,
		MinioBucket:      cfg.MinioBucket,
		MinioUseSSL:      cfg.MinioUseSSL,
		MinioPublicURL:   cfg.MinioPublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image storage: %w", err)
	}

	feed := changefeed.New(redisClient)
	var subscriber changefeed.Subscriber
	if redisClient != nil {
		subscriber = feed
	}
	cooldown := ratelimiter.NewCooldown(redisClient)
	issuer := jwtauth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)

	var searchSvc searchService.SearchService = searchService.NoopSearchService{}
	if cfg.MeiliSearchHost != "" {
		meiliClient := meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
		searchSvc = searchService.NewMeiliSearchService(meiliClient, log.WithField("module", "search"))
	}
	searchHandler := searchHttp.NewSearchHandler(searchSvc)

	userRepository := userRepo.NewUserRepository(db)
	bookingRepository := bookingRepo.NewBookingRepository(db)
	calculator := bookingService.NewStatCalculator(bookingRepository, cfg.StatsLegacyStatusFallback)

	// Leaderboard Module
	leaderboard := leaderboardService.NewEngine(leaderboardService.Options{
		Users:      userRepository,
		Stats:      calculator,
		Publisher:  feed,
		Subscriber: subscriber,
		Redis:      redisClient,
		Debounce:   cfg.LeaderboardDebounce,
		Log:        log.WithField("module", "leaderboard"),
	})
	leaderboardHandler := leaderboardHttp.NewLeaderboardHandler(leaderboard)

	// Without Redis the users and bookings changes never reach a subscriber,
	// so they drive the engine directly.
	var changes changefeed.Publisher = feed
	if redisClient == nil {
		changes = leaderboard.LocalPublisher(feed)
	}

	// User Module
	userSvc := userService.New(userService.Deps{
		Repo:         userRepository,
		ImageStorage: imageStorage,
		Issuer:       issuer,
		Feed:         changes,
		GoogleConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		Log: log.WithField("module", "user"),
	})
	authHandler := userHttp.NewAuthHandler(userSvc, cfg.FrontendURL)
	userHandler := userHttp.NewUserHandler(userSvc)

	// Email Module
	var sender emailService.Sender
	if cfg.EmailDriver == "smtp" {
		sender = emailService.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	} else {
		sender = emailService.NewEmailJSSender(emailService.EmailJSConfig{
			BaseURL:    cfg.EmailJSBaseURL,
			PublicKey:  cfg.EmailJSPublicKey,
			PrivateKey: cfg.EmailJSPrivateKey,
			Timeout:    cfg.GatewayTimeout,
		})
	}
	emailSvc := emailService.NewEmailService(sender, emailService.Options{
		ServiceID:         cfg.EmailJSServiceID,
		TemplateID:        cfg.EmailJSTemplateID,
		BookingTemplateID: cfg.BookingTemplateID,
	}, log.WithField("module", "email"))
	emailHandler := emailHttp.NewEmailHandler(emailSvc)

	// Event and Booking Modules
	eventRepository := eventRepo.NewEventRepository(db)
	eventSvc := eventService.NewEventService(eventRepository, bookingRepository, imageStorage, log.WithField("module", "event"))
	eventHandler := eventHttp.NewEventHandler(eventSvc)

	bookingSvc := bookingService.NewBookingService(bookingService.Deps{
		Repo:   bookingRepository,
		Events: eventRepository,
		Users:  userRepository,
		Mailer: emailSvc,
		Feed:   changes,
		Calc:   calculator,
		Log:    log.WithField("module", "booking"),
	})
	bookingHandler := bookingHttp.NewBookingHandler(bookingSvc)

	// Notification Module
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, feed, log.WithField("module", "notification"))
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc)
	dispatcher := notifService.NewDispatcher(notificationSvc, log.WithField("module", "mention"))

	// Post and Comment Modules
	postRepository := postRepo.NewPostRepository(db)
	postSvc := postService.NewPostService(postService.Deps{
		Repo:         postRepository,
		Users:        userRepository,
		Roster:       userSvc,
		ImageStorage: imageStorage,
		Search:       searchSvc,
		Dispatcher:   dispatcher,
		Feed:         feed,
		Cooldowns: postService.Cooldowns{
			Limiter: cooldown,
			Global:  cfg.RateLimitGlobal,
			Post:    cfg.RateLimitPost,
		},
		Log: log.WithField("module", "post"),
	})
	postHandler := postHttp.NewPostHandler(postSvc)

	commentSvc := commentService.NewCommentService(commentService.Deps{
		Repo:       commentRepo.NewCommentRepository(db),
		Users:      userRepository,
		Roster:     userSvc,
		Dispatcher: dispatcher,
		Feed:       feed,
		Cooldown:   cooldown,
		Window:     cfg.RateLimitComment,
		Log:        log.WithField("module", "comment"),
	})
	commentHandler := commentHttp.NewCommentHandler(commentSvc)

	// Payment Module
	razorpay := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.RazorpayBaseURL,
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		Timeout:   cfg.GatewayTimeout,
	})
	sessions := paymentService.NewMemorySessionStore()
	if redisClient != nil {
		sessions = paymentService.NewRedisSessionStore(redisClient, cfg.QRPollTimeout+time.Hour)
	}
	poller := paymentService.NewPoller(paymentService.PollerOptions{
		Store:    sessions,
		Links:    razorpay,
		Bookings: bookingSvc,
		Interval: cfg.QRPollInterval,
		Log:      log.WithField("module", "qr_poller"),
	})
	paymentSvc := paymentService.NewPaymentService(paymentService.Deps{
		Gateway:       razorpay,
		Events:        eventSvc,
		Bookings:      bookingSvc,
		Sessions:      sessions,
		Poller:        poller,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		QRTimeout:     cfg.QRPollTimeout,
		Log:           log.WithField("module", "payment"),
	})
	paymentHandler := paymentHttp.NewPaymentHandler(paymentSvc, cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "")

	// Admin Module
	adminSvc := adminService.NewAdminService(adminService.Deps{
		Users:    userRepository,
		Bookings: bookingSvc,
		Posts:    postSvc,
		Log:      log.WithField("module", "admin"),
	})
	adminHandler := adminHttp.NewAdminHandler(adminSvc)

	realtimeHandler := realtimeHttp.NewRealtimeHandler(feed, log.WithField("module", "realtime"))

	// Background jobs
	scheduler := job.NewScheduler(log.WithField("module", "job"))
	if err := scheduler.Register(job.LeaderboardRebuild(leaderboard, cfg.CronLeaderboard, log)); err != nil {
		return nil, err
	}
	if err := scheduler.Register(job.NotificationPrune(notificationSvc, cfg.NotificationRetention, cfg.CronNotificationPrune, log)); err != nil {
		return nil, err
	}

	ipLimiter := middleware.NewIPRateLimiter(cfg.ProxyRatePerMinute, 10)
	proxyLimit := ipLimiter.Middleware()

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(middleware.Recovery(log))
	router.Use(logger.GinMiddleware(log, "/api/health", "/api/realtime/ws"))
	router.Use(middleware.SecurityHeaders())
	router.NoRoute(middleware.NotFound())

	authMiddleware := middleware.NewAuthMiddleware(userRepository, issuer)

	api := router.Group("/api")

	// Public routes (no auth required)
	api.GET("/health", paymentHandler.Health)
	api.POST("/webhook", proxyLimit, paymentHandler.Webhook)
	api.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
	api.GET("/events", eventHandler.ListEvents)
	api.GET("/events/:id", eventHandler.GetEvent)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/google/login", authHandler.GoogleLogin)
		auth.GET("/google/callback", authHandler.GoogleCallback)
	}

	// Protected routes (apply auth middleware explicitly)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Payment proxy
		protected.POST("/create-order", proxyLimit, paymentHandler.CreateOrder)
		protected.POST("/create-qr-order", proxyLimit, paymentHandler.CreateQROrder)
		protected.GET("/check-payment-status/:orderId", proxyLimit, paymentHandler.CheckPaymentStatus)
		protected.POST("/verify-payment", proxyLimit, paymentHandler.VerifyPayment)
		protected.GET("/qr-sessions/:id", paymentHandler.GetQRSession)
		protected.POST("/qr-sessions/:id/retry", proxyLimit, paymentHandler.RetryQRSession)
		protected.POST("/send-email", proxyLimit, emailHandler.SendEmail)

		// User routes
		protected.GET("/users", userHandler.Roster)
		protected.GET("/users/me", userHandler.GetMe)
		protected.PUT("/users/me", userHandler.UpdateMe)
		protected.GET("/users/:id/stats", bookingHandler.GetUserStats)
		protected.GET("/bookings/me", bookingHandler.GetMyBookings)

		// Post routes
		protected.POST("/posts", postHandler.CreatePost)
		protected.GET("/posts", postHandler.ListPosts)
		protected.GET("/posts/:id", postHandler.GetPost)
		protected.DELETE("/posts/:id", postHandler.DeletePost)
		protected.POST("/posts/:id/like", postHandler.ToggleLike)
		protected.POST("/posts/:id/comments", commentHandler.AddComment)
		protected.GET("/posts/:id/comments", commentHandler.ListComments)
		protected.DELETE("/posts/:id/comments/:commentId", commentHandler.DeleteComment)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)

		protected.GET("/search/posts", searchHandler.SearchPosts)
		protected.GET("/search/token", searchHandler.GetSearchToken)
		protected.GET("/realtime/ws", realtimeHandler.Connect)

		// Admin routes
		adminGroup := protected.Group("")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.POST("/events", eventHandler.CreateEvent)
			adminGroup.PUT("/events/:id", eventHandler.UpdateEvent)
			adminGroup.DELETE("/events/:id", eventHandler.DeleteEvent)

			adminGroup.GET("/admin/stats", adminHandler.GetStats)
			adminGroup.PUT("/admin/users/:id/role", adminHandler.UpdateUserRole)
			adminGroup.GET("/admin/bookings", bookingHandler.ListBookings)
			adminGroup.POST("/admin/import/posts", postHandler.ImportPosts)
			adminGroup.POST("/admin/leaderboard/rebuild", leaderboardHandler.Rebuild)
		}
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		log:         log,
		leaderboard: leaderboard,
		poller:      poller,
		scheduler:   scheduler,
		ipLimiter:   ipLimiter,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// RunBackground starts the workers that live as long as ctx. A worker that
// cannot start is logged; the HTTP surface keeps serving.
func (s *Server) RunBackground(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		if err := s.leaderboard.Run(ctx); err != nil {
			s.log.WithError(err).Error("leaderboard engine stopped")
		}
		return nil
	})
	g.Go(func() error {
		return s.poller.Run(ctx)
	})
	g.Go(func() error {
		s.ipLimiter.RunCleanup(ctx, 10*time.Minute)
		return nil
	})

	s.scheduler.Start()
	g.Go(func() error {
		<-ctx.Done()
		<-s.scheduler.Stop().Done()
		return nil
	})
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader, "X-Razorpay-Signature"},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
