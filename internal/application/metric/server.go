package metric

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck - проверка внешней зависимости, например ping базы
type HealthCheck func(ctx context.Context) error

// NewServer создает новый сервер метрик
func NewServer(checks map[string]HealthCheck) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/health", func(c echo.Context) error {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK

		for name, check := range checks {
			if err := check(c.Request().Context()); err != nil {
				status[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable

				continue
			}

			status[name] = "ok"
		}

		return c.JSON(code, status)
	})

	return e
}
