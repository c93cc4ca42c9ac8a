package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/core/service"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed request body")

// fields reads a JSON object one member at a time, collecting structural errors per field.
type fields struct {
	obj  map[string]json.RawMessage
	errs domain.FieldErrors
}

func decodeBody(r io.Reader) (*fields, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return newFields(map[string]json.RawMessage{}), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, errMalformedBody
	}
	return newFields(obj), nil
}

func newFields(obj map[string]json.RawMessage) *fields {
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	return &fields{obj: obj, errs: domain.FieldErrors{}}
}

// raw returns a member that is present and not null. Missing required members are recorded.
func (f *fields) raw(name string, required bool) (json.RawMessage, bool) {
	v, ok := f.obj[name]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		if required {
			f.errs.Add(name, domain.MsgRequired)
		}
		return nil, false
	}
	return v, true
}

func (f *fields) Has(name string) bool {
	_, ok := f.obj[name]
	return ok
}

func (f *fields) String(name string, required bool) (string, bool) {
	v, ok := f.raw(name, required)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		f.errs.Add(name, domain.MsgNotAString)
		return "", false
	}
	return s, true
}

// number accepts JSON numbers and numeric strings.
func (f *fields) number(name string, required bool, invalid string) (json.Number, bool) {
	v, ok := f.raw(name, required)
	if !ok {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil || n == "" {
		f.errs.Add(name, invalid)
		return "", false
	}
	return n, true
}

func (f *fields) Int(name string, required bool) (int, bool) {
	n, ok := f.number(name, required, domain.MsgInvalidInteger)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		f.errs.Add(name, domain.MsgInvalidInteger)
		return 0, false
	}
	return i, true
}

func (f *fields) Decimal(name string, required bool) (decimal.Decimal, bool) {
	n, ok := f.number(name, required, domain.MsgInvalidNumber)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		f.errs.Add(name, domain.MsgInvalidNumber)
		return decimal.Decimal{}, false
	}
	return d, true
}

func (f *fields) Date(name string, required bool) (time.Time, bool) {
	v, ok := f.raw(name, required)
	if !ok {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		f.errs.Add(name, domain.MsgInvalidDate)
		return time.Time{}, false
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		f.errs.Add(name, domain.MsgInvalidDate)
		return time.Time{}, false
	}
	return t, true
}

func (f *fields) Status(name string) (domain.OrderStatus, bool) {
	s, ok := f.String(name, false)
	if !ok {
		return "", false
	}
	status, err := domain.ParseOrderStatus(s)
	if err != nil {
		f.errs.Add(name, err.Error())
		return "", false
	}
	return status, true
}

// Objects reads a list of JSON objects; elements that are not objects come back nil.
func (f *fields) Objects(name string, required bool) ([]*fields, bool) {
	v, ok := f.raw(name, required)
	if !ok {
		return nil, false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(v, &list); err != nil {
		f.errs.Add(name, domain.MsgNotAList)
		return nil, false
	}
	if len(list) == 0 && required {
		f.errs.Add(name, domain.MsgEmptyList)
		return nil, false
	}
	out := make([]*fields, len(list))
	for i, item := range list {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		out[i] = newFields(obj)
	}
	return out, true
}

// lineItem reads one ordered product and returns it with its structural errors.
func lineItem(f *fields) (service.LineItemInput, domain.FieldErrors) {
	if f == nil {
		return service.LineItemInput{}, domain.FieldErrors{"non_field_errors": {domain.MsgNotAnObject}}
	}
	var in service.LineItemInput
	in.Name = f.RequiredText("name")
	if q, ok := f.Int("quantity", true); ok {
		if q < 1 {
			f.errs.Add("quantity", domain.MsgMinOne)
		}
		in.Quantity = q
	}
	in.Price, _ = f.Decimal("price", true)
	return in, f.errs
}

// RequiredText reads a string that must be present and not blank.
func (f *fields) RequiredText(name string) string {
	s, ok := f.String(name, true)
	if ok && strings.TrimSpace(s) == "" {
		f.errs.Add(name, domain.MsgRequired)
	}
	return s
}

func (f *fields) Err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: f.errs}
}
