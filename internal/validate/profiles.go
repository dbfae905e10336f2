package validate

import "github.com/fusionn-batch/internal/config"

// TranscriptionConstraints builds the single-file upload profile.
func TranscriptionConstraints(l config.LimitConfig) Constraints {
	return Constraints{
		AllowedMIMETypes:   l.AllowedMIMETypes,
		MaxSingleFileBytes: l.MaxFileBytes,
		MaxBatchFileBytes:  l.MaxFileBytes,
		MaxBatchFileCount:  1,
		MaxBatchTotalBytes: l.MaxFileBytes,
	}
}

// BatchConstraints builds the multi-file upload profile.
func BatchConstraints(l config.LimitConfig) Constraints {
	return Constraints{
		AllowedMIMETypes:   l.AllowedMIMETypes,
		MaxSingleFileBytes: l.MaxFileBytes,
		MaxBatchFileBytes:  l.MaxFileBytes,
		MaxBatchFileCount:  l.MaxFiles,
		MaxBatchTotalBytes: l.MaxTotalBytes,
	}
}
