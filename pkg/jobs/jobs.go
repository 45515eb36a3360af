package jobs

// Runnable is a one-shot job executed by the main process.
type Runnable interface {
	Run() error
}
