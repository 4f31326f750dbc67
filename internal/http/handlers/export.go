package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"veoqueue/internal/domain"
	"veoqueue/internal/i18n"
	"veoqueue/pkg/zip"
)

// ExportVideos streams a zip of every completed job whose video is held in
// local storage. ?label= narrows the export like ListJobs.
func (a *App) ExportVideos(w http.ResponseWriter, r *http.Request) {
	label := i18n.FoldLabel(r.URL.Query().Get("label"))

	var assets []zip.Asset
	for _, job := range a.Store.List() {
		if job.Status != domain.JobStatusCompleted {
			continue
		}
		if label != "" && i18n.FoldLabel(job.Label) != label {
			continue
		}
		key, ok := a.Files.KeyFromURL(job.VideoResult)
		if !ok {
			continue
		}
		data, err := a.Files.Read(r.Context(), key)
		if err != nil {
			a.log().Warn().Err(err).Str("job_id", job.ID).Msg("export: skip unreadable video")
			continue
		}
		assets = append(assets, zip.Asset{Filename: exportName(job), Modified: job.CreatedAt, Data: data})
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.log().Error().Err(err).Msg("export: build archive")
		a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="veoqueue-videos.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func exportName(job domain.Job) string {
	label := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ' || r == '_':
			return '-'
		}
		return -1
	}, job.Label)
	if label == "" {
		return fmt.Sprintf("%s.mp4", job.ID)
	}
	return fmt.Sprintf("%s-%s.mp4", label, job.ID)
}
