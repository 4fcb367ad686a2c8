package queue

import (
	"github.com/hibiken/asynq"
)

// HandlersRegistry binds task kinds to their handlers.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType TaskType, handler asynq.Handler) {
	r.mux.Handle(string(taskType), handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
