package mimebundle

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for serialization events.
var (
	SignalSerializeStart      = capitan.NewSignal("mimebundle.serialize.start", "Serialize operation beginning")
	SignalSerializeComplete   = capitan.NewSignal("mimebundle.serialize.complete", "Serialize operation finished")
	SignalDeserializeStart    = capitan.NewSignal("mimebundle.deserialize.start", "Deserialize operation beginning")
	SignalDeserializeComplete = capitan.NewSignal("mimebundle.deserialize.complete", "Deserialize operation finished")
	SignalRenderStart         = capitan.NewSignal("mimebundle.render.start", "Display bundle render beginning")
	SignalRenderComplete      = capitan.NewSignal("mimebundle.render.complete", "Display bundle render finished")
)

// Keys for typed event data.
var (
	KeyMimetype = capitan.NewStringKey("mimetype")
	KeyTypeName = capitan.NewStringKey("type_name")
	KeySize     = capitan.NewIntKey("size")
	KeyDuration = capitan.NewDurationKey("duration")
	KeyError    = capitan.NewErrorKey("error")
)

// emitSerializeStart emits an event when serialization begins.
func emitSerializeStart(ctx context.Context, mimetype, typeName string) {
	capitan.Emit(ctx, SignalSerializeStart,
		KeyMimetype.Field(mimetype),
		KeyTypeName.Field(typeName),
	)
}

// emitSerializeComplete emits an event when serialization finishes.
func emitSerializeComplete(ctx context.Context, mimetype, typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyMimetype.Field(mimetype),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalSerializeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalSerializeComplete, fields...)
	}
}

// emitDeserializeStart emits an event when deserialization begins.
func emitDeserializeStart(ctx context.Context, mimetype string) {
	capitan.Emit(ctx, SignalDeserializeStart,
		KeyMimetype.Field(mimetype),
	)
}

// emitDeserializeComplete emits an event when deserialization finishes.
func emitDeserializeComplete(ctx context.Context, mimetype, typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyMimetype.Field(mimetype),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDeserializeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDeserializeComplete, fields...)
	}
}

// emitRenderStart emits an event when a display bundle render begins.
func emitRenderStart(ctx context.Context, mimetype, typeName string) {
	capitan.Emit(ctx, SignalRenderStart,
		KeyMimetype.Field(mimetype),
		KeyTypeName.Field(typeName),
	)
}

// emitRenderComplete emits an event when a display bundle render
// finishes. A non-nil err here records a serialization failure that was
// swallowed so the remaining representations could still be returned.
func emitRenderComplete(ctx context.Context, mimetype, typeName string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyMimetype.Field(mimetype),
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalRenderComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalRenderComplete, fields...)
	}
}
