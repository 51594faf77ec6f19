package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// NewSpinner returns an indeterminate progress indicator writing to w
func NewSpinner(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

// Add increments the progress bar while safely handling errors.
func Add(bar *progressbar.ProgressBar, n int, logger *zap.Logger) {
	if bar == nil || n == 0 {
		return
	}

	if err := bar.Add(n); err != nil && logger != nil {
		logger.Debug("failed to update progress bar", zap.Error(err))
	}
}

// Finish completes the bar, ignoring a nil bar
func Finish(bar *progressbar.ProgressBar, logger *zap.Logger) {
	if bar == nil {
		return
	}

	if err := bar.Finish(); err != nil && logger != nil {
		logger.Debug("failed to finish progress bar", zap.Error(err))
	}
}
