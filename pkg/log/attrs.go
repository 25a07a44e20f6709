package log

import "log/slog"

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func Workflow[T ~string](slug T) slog.Attr {
	return slog.String("workflow", string(slug))
}

func MessageID[T ~string](id T) slog.Attr {
	return slog.String("message_id", string(id))
}

func StepName(name string) slog.Attr {
	return slog.String("step", name)
}

func EventName(name string) slog.Attr {
	return slog.String("event", name)
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
