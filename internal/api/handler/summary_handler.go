package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/ports"
	"github.com/99minutos/user-directory/internal/pkg/metrics"
)

const summarizerFailedMsg = "summarizer request failed"

// SummaryHandler proxies to the external summarizer. A nil summarizer means
// the feature is not configured.
type SummaryHandler struct {
	summarizer ports.Summarizer
	log        zerolog.Logger
}

func NewSummaryHandler(summarizer ports.Summarizer, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{
		summarizer: summarizer,
		log:        log.With().Str("component", "summary_handler").Logger(),
	}
}

// Summarize handles POST /summarize.
//
// @Summary      Summarize text with an LLM
// @Tags         ai
// @Accept       json
// @Produce      json
// @Param        body  body      summarizeRequest  true  "Prompt and text"
// @Success      200   {object}  summarizeResponse
// @Failure      422   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /summarize [post]
func (h *SummaryHandler) Summarize(c echo.Context) error {
	if h.summarizer == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "summarizer is not configured"})
	}

	var req summarizeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	start := time.Now()
	out, err := h.summarizer.Summarize(c.Request().Context(), ports.SummaryRequest{
		Prompt:      req.Prompt,
		Text:        req.Text,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Model:       req.Model,
	})
	if err != nil {
		metrics.SummarizeDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		h.log.Error().Err(err).Msg("summarize failed")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: summarizerFailedMsg})
	}

	metrics.SummarizeDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return c.JSON(http.StatusOK, summarizeResponse{Response: out})
}
