package cli

import (
	"bytes"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/stretchr/testify/assert"
)

func TestFormatProgress(t *testing.T) {
	ev := models.Progress{Stage: models.StageImages, CurrentItem: 1, TotalItems: 3, CurrentItemName: "a.jpg"}
	assert.Equal(t, "[images] 1/3  33% a.jpg", formatProgress(ev))

	ev.Error = "timeout"
	assert.Equal(t, "[images] 1/3  33% a.jpg (failed: timeout)", formatProgress(ev))
}

func TestProgressPrinter_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, false)

	p.Render(models.Progress{Stage: models.StageCases, CurrentItem: 1, TotalItems: 2, CurrentItemName: "one"})
	p.Render(models.Progress{Stage: models.StageCases, CurrentItem: 2, TotalItems: 2, CurrentItemName: "two"})
	p.Render(models.Progress{Stage: models.StageIdle})

	assert.Equal(t, "[cases] 1/2  50% one\n[cases] 2/2 100% two\n", buf.String())
}

func TestProgressPrinter_InPlace(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, true)

	p.Render(models.Progress{Stage: models.StageImages, CurrentItem: 1, TotalItems: 1, CurrentItemName: "x"})
	p.Render(models.Progress{Stage: models.StageIdle})
	p.Render(models.Progress{Stage: models.StageIdle})

	assert.Equal(t, "\r\033[K[images] 1/1 100% x\n", buf.String())
}
