package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"genstudio/internal/domain"
	"genstudio/internal/validation"
)

const (
	defaultListLimit = 5
	maxListLimit     = 20
	// multipartMemory is held in memory before parts spill to temp files.
	multipartMemory = 1 << 20
	// multipartSlack covers the form fields and boundaries around the image.
	multipartSlack = 1 << 20
	createAttempts = 3
)

type generationDTO struct {
	ID             string    `json:"id"`
	Prompt         string    `json:"prompt"`
	Style          string    `json:"style"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ImageURL       string    `json:"imageUrl"`
	ResultImageURL *string   `json:"resultImageUrl"`
}

func (a *App) toGenerationDTO(g *domain.Generation) generationDTO {
	dto := generationDTO{
		ID:        g.ID,
		Prompt:    g.Prompt,
		Style:     string(g.Style),
		Status:    string(g.Status),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
		ImageURL:  a.assetURL(g.OriginalPath),
	}
	if g.Status == domain.StatusCompleted && g.ResultPath != nil {
		u := a.assetURL(*g.ResultPath)
		dto.ResultImageURL = &u
	}
	return dto
}

type generationInput struct {
	prompt string
	style  domain.Style
	image  validation.Image
	data   []byte
}

// parseGeneration reads and validates the multipart form. Nothing is stored
// before it returns successfully.
func (a *App) parseGeneration(w http.ResponseWriter, r *http.Request) (generationInput, error) {
	var in generationInput
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+multipartSlack)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, validation.ErrImageTooLarge
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return in, &validation.Error{Field: "form", Message: "Invalid multipart form"}
		}
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	prompt, err := validation.Prompt(r.FormValue("prompt"))
	if err != nil {
		return in, err
	}
	style, err := validation.Style(r.FormValue("style"))
	if err != nil {
		return in, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return in, validation.ErrImageRequired
		}
		return in, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	image, err := validation.UploadedImage(header, file, a.MaxUploadBytes)
	if err != nil {
		return in, err
	}
	data, err := io.ReadAll(io.LimitReader(file, a.MaxUploadBytes+1))
	if err != nil {
		return in, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > a.MaxUploadBytes {
		return in, validation.ErrImageTooLarge
	}
	return generationInput{prompt: prompt, style: style, image: image, data: data}, nil
}

func (a *App) overloaded() bool {
	return a.MaxInFlightJobs > 0 && a.Jobs.InFlight() >= a.MaxInFlightJobs
}

func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if a.overloaded() {
		a.fail(w, r, domain.ErrOverloaded)
		return
	}
	in, err := a.parseGeneration(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	key, err := a.Uploads.Write(r.Context(), "originals/"+a.newID()+in.image.Extension, in.data)
	if err != nil {
		a.fail(w, r, fmt.Errorf("store upload: %w", err))
		return
	}

	var gen *domain.Generation
	for attempt := 0; attempt < createAttempts; attempt++ {
		gen, err = a.Generations.Create(r.Context(), domain.NewGeneration{
			ID:           a.newID(),
			UserID:       userID,
			Prompt:       in.prompt,
			Style:        in.style,
			OriginalPath: key,
		})
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
	}
	if err != nil {
		if rmErr := a.Uploads.Remove(key); rmErr != nil {
			a.Logger.Warn().Err(rmErr).Str("key", key).Msg("remove orphaned upload failed")
		}
		a.fail(w, r, fmt.Errorf("create generation: %w", err))
		return
	}

	log := a.Logger.With().Str("job_id", gen.ID).Int64("user_id", userID).Logger()
	if err := a.Jobs.Submit(*gen); err != nil {
		// Submission only fails while shutting down; record the job as failed
		// so it never sits in processing.
		log.Error().Err(err).Msg("submit generation failed")
		if failed, ferr := a.Generations.UpdateStatus(r.Context(), gen.ID, domain.StatusFailed, nil); ferr == nil {
			gen = failed
		} else {
			log.Error().Err(ferr).Msg("mark unsubmitted generation failed")
		}
	}
	log.Info().Str("style", string(gen.Style)).Msg("generation created")
	a.ok(w, http.StatusCreated, "Generation started", map[string]any{"generation": a.toGenerationDTO(gen)})
}

// parseLimit clamps the limit query to [1, maxListLimit]. Missing or
// malformed values use the default.
func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultListLimit
	}
	if n < 1 {
		return 1
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	limit := parseLimit(r.URL.Query().Get("limit"))

	rows, err := a.Generations.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	total, err := a.Generations.CountByUser(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]generationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, a.toGenerationDTO(&rows[i]))
	}
	a.ok(w, http.StatusOK, "", map[string]any{"generations": out, "total": total})
}

func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	gen, err := a.Generations.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !gen.OwnedBy(userID) {
		a.fail(w, r, domain.ErrForbidden)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"generation": a.toGenerationDTO(gen)})
}
