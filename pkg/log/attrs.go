package log

import "log/slog"

func ItemID[T ~string](id T) slog.Attr {
	return slog.String("item_id", string(id))
}

func OfferID[T ~string](id T) slog.Attr {
	return slog.String("offer_id", string(id))
}

func Step[T ~string](step T) slog.Attr {
	return slog.String("step", string(step))
}

func Gate[T ~string](gate T) slog.Attr {
	return slog.String("gate", string(gate))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Platform[T ~string](p T) slog.Attr {
	return slog.String("platform", string(p))
}

func Version(v int64) slog.Attr {
	return slog.Int64("version", v)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
