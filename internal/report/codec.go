package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// The pipe protocol is newline-delimited JSON, one frame per message.
// Commands travel parent->child on the command pipe; Done/Fail frames travel
// child->parent on the result pipe; Progress frames on the progress pipe.
// Exit and Reset never cross the wire, the supervisor synthesizes them.

// resultFrame is the wire envelope for terminal reports.
type resultFrame struct {
	Kind      Kind            `json:"kind"`
	ID        string          `json:"id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Message   string          `json:"message,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
}

// CommandWriter encodes Commands onto the command pipe.
type CommandWriter struct {
	enc *json.Encoder
}

func NewCommandWriter(w io.Writer) *CommandWriter {
	return &CommandWriter{enc: json.NewEncoder(w)}
}

func (w *CommandWriter) Write(cmd Command) error {
	if err := w.enc.Encode(cmd); err != nil {
		return fmt.Errorf("encoding command %q: %w", cmd.ID, err)
	}
	return nil
}

// CommandReader decodes Commands from the command pipe. Read returns io.EOF
// once the supervisor closes its end, which is the shutdown signal.
type CommandReader struct {
	dec *json.Decoder
}

func NewCommandReader(r io.Reader) *CommandReader {
	return &CommandReader{dec: json.NewDecoder(r)}
}

func (r *CommandReader) Read() (Command, error) {
	var cmd Command
	if err := r.dec.Decode(&cmd); err != nil {
		if err == io.EOF {
			return Command{}, io.EOF
		}
		return Command{}, fmt.Errorf("decoding command: %w", err)
	}
	return cmd, nil
}

// ResultWriter encodes Done and Fail reports onto the result pipe.
type ResultWriter struct {
	enc *json.Encoder
}

func NewResultWriter(w io.Writer) *ResultWriter {
	return &ResultWriter{enc: json.NewEncoder(w)}
}

func (w *ResultWriter) Write(r Report) error {
	var frame resultFrame
	switch r := r.(type) {
	case Done:
		frame = resultFrame{Kind: KindDone, ID: r.ID, Result: r.Result}
	case Fail:
		frame = resultFrame{Kind: KindFail, ID: r.ID, Message: r.Message, Traceback: r.Traceback}
	default:
		return fmt.Errorf("report kind %q cannot cross the result pipe", r.Kind())
	}
	if err := w.enc.Encode(frame); err != nil {
		return fmt.Errorf("encoding %s report: %w", frame.Kind, err)
	}
	return nil
}

// ResultReader decodes terminal reports from the result pipe.
type ResultReader struct {
	dec *json.Decoder
}

func NewResultReader(r io.Reader) *ResultReader {
	return &ResultReader{dec: json.NewDecoder(r)}
}

func (r *ResultReader) Read() (Report, error) {
	var frame resultFrame
	if err := r.dec.Decode(&frame); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decoding result frame: %w", err)
	}
	switch frame.Kind {
	case KindDone:
		return Done{ID: frame.ID, Result: frame.Result}, nil
	case KindFail:
		return Fail{ID: frame.ID, Message: frame.Message, Traceback: frame.Traceback}, nil
	default:
		return nil, fmt.Errorf("unexpected result frame kind %q", frame.Kind)
	}
}

// ProgressWriter encodes Progress reports onto the progress pipe. Frames are
// written immediately, never buffered until task completion.
type ProgressWriter struct {
	enc *json.Encoder
}

func NewProgressWriter(w io.Writer) *ProgressWriter {
	return &ProgressWriter{enc: json.NewEncoder(w)}
}

func (w *ProgressWriter) Write(p Progress) error {
	if err := w.enc.Encode(p); err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	return nil
}

// ProgressReader decodes Progress reports from the progress pipe.
type ProgressReader struct {
	dec *json.Decoder
}

func NewProgressReader(r io.Reader) *ProgressReader {
	return &ProgressReader{dec: json.NewDecoder(r)}
}

func (r *ProgressReader) Read() (Progress, error) {
	var p Progress
	if err := r.dec.Decode(&p); err != nil {
		if err == io.EOF {
			return Progress{}, io.EOF
		}
		return Progress{}, fmt.Errorf("decoding progress: %w", err)
	}
	return p, nil
}
