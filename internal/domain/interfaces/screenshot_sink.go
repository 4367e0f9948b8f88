package interfaces

import (
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
)

type ScreenshotSink interface {
	Process(message *entities.Message) bool
	List(since time.Time) ([]entities.ScreenshotRecord, error)
}
