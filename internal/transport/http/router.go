package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arnaudmaillet/core-platform-sub000/internal/transport/http/handler"
)

type Handlers struct {
	Account    *handler.AccountHandler
	Moderation *handler.ModerationHandler
	Settings   *handler.SettingsHandler
	Profile    *handler.ProfileHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	accounts := app.Group("/v1/accounts")
	accounts.Post("", h.Account.Create)
	accounts.Get("/by-username/:username", h.Account.ResolveUsername)
	accounts.Get("/:id", h.Account.Get)
	accounts.Delete("/:id", h.Account.Delete)
	accounts.Put("/:id/username", h.Account.ChangeUsername)
	accounts.Put("/:id/email", h.Account.ChangeEmail)
	accounts.Post("/:id/email/verify", h.Account.VerifyEmail)
	accounts.Post("/:id/suspend", h.Account.Suspend)
	accounts.Post("/:id/unsuspend", h.Account.Unsuspend)
	accounts.Post("/:id/ban", h.Account.Ban)
	accounts.Post("/:id/deactivate", h.Account.Deactivate)
	accounts.Post("/:id/reactivate", h.Account.Reactivate)
	accounts.Post("/:id/activity", h.Account.RecordActivity)
	accounts.Post("/:id/migrate", h.Account.Migrate)

	moderation := app.Group("/v1/accounts/:id/moderation")
	moderation.Get("", h.Moderation.Get)
	moderation.Post("/trust-score", h.Moderation.AdjustTrustScore)
	moderation.Post("/shadowban", h.Moderation.Shadowban)
	moderation.Delete("/shadowban", h.Moderation.LiftShadowban)
	moderation.Put("/role", h.Moderation.UpgradeRole)
	moderation.Put("/beta", h.Moderation.SetBetaStatus)

	settings := app.Group("/v1/accounts/:id/settings")
	settings.Get("", h.Settings.Get)
	settings.Put("/timezone", h.Settings.UpdateTimezone)
	settings.Put("/preferences", h.Settings.UpdatePreferences)
	settings.Post("/push-tokens", h.Settings.AddPushToken)
	settings.Delete("/push-tokens", h.Settings.RemovePushToken)

	profiles := app.Group("/v1/profiles")
	profiles.Get("/by-handle/:handle", h.Profile.GetByHandle)
	profiles.Post("/:id", h.Profile.Create)
	profiles.Get("/:id", h.Profile.Get)
	profiles.Put("/:id/handle", h.Profile.UpdateHandle)
	profiles.Put("/:id/display-name", h.Profile.UpdateDisplayName)
	profiles.Put("/:id/bio", h.Profile.UpdateBio)
	profiles.Put("/:id/privacy", h.Profile.UpdatePrivacy)
	profiles.Post("/:id/followers", h.Profile.AdjustFollowers)
	profiles.Post("/:id/following", h.Profile.AdjustFollowing)
	profiles.Post("/:id/posts", h.Profile.IncrementPostCount)
	profiles.Delete("/:id/posts", h.Profile.DecrementPostCount)
	profiles.Post("/:id/stats/refresh", h.Profile.RefreshStats)
}
