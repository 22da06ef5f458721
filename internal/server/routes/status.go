package routes

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/sang-cache/sang-cache/internal/generation"
	"github.com/sang-cache/sang-cache/internal/version"
)

// StatusSource 提供缓存代与就绪状态快照，generation.Lifecycle 实现该接口。
type StatusSource interface {
	Snapshot(ctx context.Context) (generation.Status, error)
}

type statusPayload struct {
	Version      string   `json:"version"`
	Backend      string   `json:"backend"`
	CacheVersion string   `json:"cache_version"`
	Installed    bool     `json:"installed"`
	Activated    bool     `json:"activated"`
	Generations  []string `json:"generations"`
	Entries      int      `json:"entries"`
	ManifestSize int      `json:"manifest_size"`
}

// RegisterStatusRoutes 暴露 /-/status 诊断接口，供运维确认预缓存与激活是否完成。
func RegisterStatusRoutes(app *fiber.App, source StatusSource, backend string) {
	if app == nil || source == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		status, err := source.Snapshot(c.Context())
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":  "store_unavailable",
				"detail": err.Error(),
			})
		}
		return c.JSON(encodeStatus(status, backend))
	})
}

func encodeStatus(status generation.Status, backend string) statusPayload {
	generations := status.Generations
	if generations == nil {
		generations = []string{}
	}
	return statusPayload{
		Version:      version.Full(),
		Backend:      backend,
		CacheVersion: status.Version,
		Installed:    status.Installed,
		Activated:    status.Activated,
		Generations:  generations,
		Entries:      status.Entries,
		ManifestSize: status.ManifestSize,
	}
}
