package clip

import "fmt"

// ProbeError reports that a clip reference could not be resolved to
// playable media. It is fatal to ingestion.
type ProbeError struct {
	Ref string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe clip %q: %v", e.Ref, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// DownloadError reports that the downloader exited abnormally or produced
// no usable files. It is fatal to ingestion.
type DownloadError struct {
	Ref string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download clip %q: %v", e.Ref, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
