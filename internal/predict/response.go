package predict

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/Joserraldo/diabetes/internal/domain"
)

// DefaultMessage stands in for a missing "mensaje" field.
const DefaultMessage = "prediction completed"

// Response is the decoded service answer:
//
//	mensaje                any     free-text verdict; falsy values count as absent
//	probabilidad_diabetes  number  probability in [0,1]; any other value is unknown
//
// Extra fields such as "resultado" are ignored.
type Response struct {
	Message     *string
	Probability *float64
}

// ParseResponse decodes a body. It is accepted when "mensaje" is truthy or
// when "probabilidad_diabetes" is present at all, whatever its value. A
// probability that is not a number in [0,1] is kept as unknown.
func ParseResponse(body []byte) (Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return Response{}, ErrInvalidResponse
	}

	var r Response
	if raw, ok := fields["mensaje"]; ok {
		if msg, truthy := messageText(raw); truthy {
			r.Message = &msg
		}
	}
	rawProb, hasProb := fields["probabilidad_diabetes"]
	if hasProb {
		r.Probability = probability(rawProb)
	}

	if r.Message == nil && !hasProb {
		return Response{}, ErrInvalidResponse
	}
	return r, nil
}

// messageText renders a message of any JSON type as text and reports whether
// it is truthy: null, false, 0 and "" are not.
func messageText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return "", false
		}
		return s, s != ""
	case 'n', 'f':
		return "", false
	case 't':
		return "true", true
	case '{', '[':
		var buf bytes.Buffer
		if json.Compact(&buf, raw) != nil {
			return "", false
		}
		return buf.String(), true
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || f == 0 {
			return "", false
		}
		return string(raw), true
	}
}

func probability(raw json.RawMessage) *float64 {
	var p *float64
	if json.Unmarshal(raw, &p) != nil || p == nil {
		return nil
	}
	if math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 || *p > 1 {
		return nil
	}
	return p
}

func (r Response) Outcome() domain.Outcome {
	msg := DefaultMessage
	if r.Message != nil {
		msg = *r.Message
	}
	var p *float64
	if r.Probability != nil {
		v := *r.Probability
		p = &v
	}
	return domain.Success(msg, p)
}
