package drift

// Centralized severity and message helpers for probe changes.
// Rules:
// - BLOCK when callers relying on the previous result would break
// - WARN for suspicious changes that may be a backend data quality issue
// - INFO for safe changes

const (
	SeverityInfo  = "INFO"
	SeverityWarn  = "WARN"
	SeverityBlock = "BLOCK"
)

const (
	KindModalityChanged    = "modality_changed"
	KindColumnAdded        = "column_added"
	KindColumnRemoved      = "column_removed"
	KindTypeChanged        = "type_changed"
	KindRowEstimateChanged = "row_estimate_changed"
	KindFileCountChanged   = "file_count_changed"
	KindFileCountZero      = "file_count_zero"
)

func SeverityForChange(kind string) string {
	switch kind {
	case KindModalityChanged, KindColumnRemoved:
		return SeverityBlock
	case KindTypeChanged, KindFileCountZero:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// MessageForChange returns a concise message for the given change kind.
func MessageForChange(kind string) string {
	switch kind {
	case KindModalityChanged:
		return "dataset modality changed"
	case KindColumnAdded:
		return "column added"
	case KindColumnRemoved:
		return "column no longer present"
	case KindTypeChanged:
		return "column type changed"
	case KindRowEstimateChanged:
		return "row count estimate changed"
	case KindFileCountChanged:
		return "file count changed"
	case KindFileCountZero:
		return "file based dataset reports zero files"
	default:
		return ""
	}
}

func severityRank(s string) int {
	switch s {
	case SeverityBlock:
		return 2
	case SeverityWarn:
		return 1
	default:
		return 0
	}
}
