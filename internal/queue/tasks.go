package queue

// TaskType is the closed set of job kinds the dispatcher accepts.
type TaskType string

const (
	TypeVoiceSynthesize TaskType = "voice:synthesize"
	TypeImageGenerate   TaskType = "image:generate"
	TypeVideoGenerate   TaskType = "video:generate"
	TypeTextGenerate    TaskType = "text:generate"
)

// QueueName identifies one of the fixed worker queues.
type QueueName string

const (
	QueueVoice   QueueName = "voice"
	QueueImage   QueueName = "image"
	QueueVideo   QueueName = "video"
	QueueText    QueueName = "text"
	QueueDefault QueueName = "default"
)

// AllQueues lists every queue the dispatcher routes to, in the order
// Remove scans them.
var AllQueues = []QueueName{QueueVoice, QueueImage, QueueVideo, QueueText, QueueDefault}

// Classify maps a task kind to exactly one queue. The mapping is total:
// kinds outside the closed set land on the default queue.
func Classify(taskType TaskType) QueueName {
	switch taskType {
	case TypeVoiceSynthesize:
		return QueueVoice
	case TypeImageGenerate:
		return QueueImage
	case TypeVideoGenerate:
		return QueueVideo
	case TypeTextGenerate:
		return QueueText
	default:
		return QueueDefault
	}
}

type VoiceSynthesizePayload struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Text  string `json:"text"`
}

type ImageGeneratePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type VideoGeneratePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type TextGeneratePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}
