package deps

import (
	"time"

	"github.com/Terrance/Davendar/internal/collection"
	"github.com/Terrance/Davendar/internal/logger"
	"github.com/Terrance/Davendar/internal/quickadd"
)

type Deps struct {
	Logger     logger.Logger
	StartTime  time.Time
	Version    string
	Commit     string
	BuildDate  string
	GoVersion  string
	TimeNow    func() time.Time       // for testing, defaults to time.Now
	Collection *collection.Collection // calendar/entry index
	Dates      quickadd.DateParser    // free-text date resolution for quick add
	Location   *time.Location         // process-configured timezone
}
