package service

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/slurpey/anvilizer/internal/entity"
	"github.com/slurpey/anvilizer/internal/layerpkg"
	"github.com/slurpey/anvilizer/internal/pkg/events"
)

// colorPalette maps brand color hex codes to names used in download slugs.
var colorPalette = map[string]string{
	"#FFFFFF": "White",
	"#000000": "Black",
	"#EDEFF0": "Light Gray",
	"#0070F2": "Blue 2",
	"#1E90FF": "Blue 1",
	"#0057B8": "Dark Blue",
	"#00418A": "Navy",
	"#2FA7A0": "Teal 2",
	"#44B87B": "Green 1",
	"#FFB300": "Orange 1",
	"#AA0843": "Red 2",
}

func (s *anvilService) SubmitPreview(img image.Image, spec entity.AnvilSpec, filename string) (string, error) {
	if err := s.admit(img, spec); err != nil {
		return "", err
	}
	job := &entity.Job{
		Kind:     entity.KindPreview,
		Input:    img,
		Spec:     spec,
		Styles:   entity.AllStyles(),
		Filename: baseName(filename),
	}
	return s.submit(job)
}

func (s *anvilService) SubmitAdvanced(img image.Image, spec entity.AnvilSpec, style entity.Style, layered bool, filename string) (string, error) {
	if err := s.admit(img, spec); err != nil {
		return "", err
	}
	job := &entity.Job{
		Kind:     entity.KindAdvanced,
		Input:    img,
		Spec:     spec,
		Styles:   []entity.Style{style},
		Layered:  layered,
		Filename: baseName(filename),
	}
	return s.submit(job)
}

// admit enforces the validation and resource-exhaustion checks that must
// fail before a job ever enters the scheduler.
func (s *anvilService) admit(img image.Image, spec entity.AnvilSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 {
		return fmt.Errorf("%w: empty image", entity.ErrInvalidImage)
	}
	if w > s.limits.MaxDimension || h > s.limits.MaxDimension || w*h > s.limits.MaxPixels {
		return fmt.Errorf("%w: %dx%d", entity.ErrImageTooLarge, w, h)
	}
	return nil
}

func (s *anvilService) submit(job *entity.Job) (string, error) {
	id, err := s.sched.Submit(job)
	if err != nil {
		return "", err
	}
	s.publish(events.JobEvent{
		JobID:  id,
		Kind:   job.Kind,
		Status: entity.StatusQueued,
		At:     time.Now().UTC(),
	})
	return id, nil
}

func (s *anvilService) JobStatus(id string) (*entity.JobView, error) {
	return s.sched.Status(id)
}

func (s *anvilService) CancelJob(id string) error {
	return s.sched.Cancel(id)
}

// onFinished persists the finished job's artifacts and publishes its
// terminal event. Runs on the worker goroutine before the terminal status is
// visible to pollers, so download links in a done status always resolve.
func (s *anvilService) onFinished(job *entity.Job) {
	if job.Status == entity.StatusDone && job.Result != nil {
		if err := s.persist(job); err != nil {
			logrus.Errorf("Failed to persist session %s: %v", job.ID, err)
		}
	}
	s.publish(events.JobEvent{
		JobID:    job.ID,
		Kind:     job.Kind,
		Status:   job.Status,
		Error:    job.ErrorDetail,
		Duration: job.CompletedAt.Sub(job.StartedAt),
		At:       time.Now().UTC(),
	})
}

func (s *anvilService) persist(job *entity.Job) error {
	for _, res := range job.Result.Styles {
		if err := s.repo.SaveStyle(job.ID, res.Style, res.Data); err != nil {
			return err
		}
	}
	if job.Result.Package != nil {
		data, err := layerpkg.ZipBytes(job.Result.Package)
		if err != nil {
			return err
		}
		if err := s.repo.SavePackage(job.ID, data); err != nil {
			return err
		}
	}
	return s.repo.SaveMeta(job.ID, entity.SessionMeta{
		BaseName:   job.Filename,
		ColourSlug: colorSlug(job.Spec.Color),
	})
}

func (s *anvilService) StyleDownload(uid, styleName string) ([]byte, string, error) {
	style, err := entity.ParseStyle(styleName)
	if err != nil {
		return nil, "", err
	}
	data, err := s.repo.StyleData(uid, style)
	if err != nil {
		return nil, "", err
	}
	return data, s.downloadName(uid, style) + ".png", nil
}

func (s *anvilService) PackageDownload(uid string) ([]byte, string, error) {
	data, err := s.repo.PackageData(uid)
	if err != nil {
		return nil, "", err
	}
	return data, "anvil_layers.zip", nil
}

// DownloadAll bundles every persisted style of the session into one zip.
func (s *anvilService) DownloadAll(uid string) ([]byte, string, error) {
	styles, err := s.repo.Styles(uid)
	if err != nil {
		return nil, "", err
	}
	if len(styles) == 0 {
		return nil, "", entity.ErrSessionNotFound
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, style := range styles {
		data, err := s.repo.StyleData(uid, style)
		if err != nil {
			return nil, "", err
		}
		w, err := zw.Create(s.downloadName(uid, style) + ".png")
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "anvil_assets.zip", nil
}

func (s *anvilService) Stats() map[string]any {
	return s.sched.Stats()
}

// CleanupOldSessions keeps only the newest maxSessions session directories.
func (s *anvilService) CleanupOldSessions(maxSessions int) {
	sessions, err := s.repo.Sessions()
	if err != nil {
		logrus.Errorf("Session cleanup failed: %v", err)
		return
	}
	for _, uid := range sessions[minInt(maxSessions, len(sessions)):] {
		if err := s.repo.Delete(uid); err != nil {
			logrus.Errorf("Failed to delete session %s: %v", uid, err)
			continue
		}
		logrus.Infof("Cleaned up old session %s", uid)
	}
}

func (s *anvilService) publish(event events.JobEvent) {
	if err := s.producer.Publish(event); err != nil {
		logrus.Warnf("Event publish failed for job %s: %v", event.JobID, err)
	}
}

// downloadName builds the friendly filename <base>_<style>_<ColourSlug>.
func (s *anvilService) downloadName(uid string, style entity.Style) string {
	name := strings.ToLower(strings.ReplaceAll(string(style), " ", "_"))
	meta, err := s.repo.Meta(uid)
	if err != nil {
		return name
	}
	out := meta.BaseName + "_" + name
	if meta.ColourSlug != "" {
		out += "_" + meta.ColourSlug
	}
	return out
}

func colorSlug(c entity.RGB) string {
	if name, ok := colorPalette[c.Hex()]; ok {
		return strings.ReplaceAll(name, " ", "")
	}
	return "Custom"
}

func baseName(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if stem == "" || stem == "." {
		return "image"
	}
	return stem
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
