package config

const (
	// TopicAlignTask is the NSQ topic for alignment run requests.
	TopicAlignTask = "align.task"

	// TopicAlignResult is the NSQ topic for alignment run outcomes.
	TopicAlignResult = "align.result"
)
