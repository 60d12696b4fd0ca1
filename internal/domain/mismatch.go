package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueTag names the concrete type packed into a ValueMismatch so a consumer
// can re-extract it.
type ValueTag string

const (
	ValueShortText    ValueTag = "short_text"
	ValueLongText     ValueTag = "long_text"
	ValueTimestamp    ValueTag = "timestamp"
	ValuePriority     ValueTag = "priority"
	ValueLabelDetails ValueTag = "label_details"
)

// ValueMismatch is structured evidence that a command's expected prior value
// does not match the stored one. Expected, Actual and NewValue are packed in
// a type-erased but tagged form; Version is the aggregate version at
// detection time. Absent values are the type's zero sentinel, never null.
type ValueMismatch struct {
	Tag      ValueTag        `json:"tag"`
	Expected json.RawMessage `json:"expected"`
	Actual   json.RawMessage `json:"actual"`
	NewValue json.RawMessage `json:"new_value"`
	Version  int             `json:"version"`
}

// ErrWrongValueTag is returned when a typed extractor is called on a
// mismatch packed with a different tag. This is a programmer error, not a
// business rejection.
var ErrWrongValueTag = fmt.Errorf("value mismatch: wrong value tag")

func packed(v any) json.RawMessage {
	// Marshaling strings, times, priorities and label details cannot fail.
	b, _ := json.Marshal(v)
	return b
}

func MismatchOfShortText(expected, actual, newValue string, version int) ValueMismatch {
	return ValueMismatch{
		Tag:      ValueShortText,
		Expected: packed(expected),
		Actual:   packed(actual),
		NewValue: packed(newValue),
		Version:  version,
	}
}

func MismatchOfLongText(expected, actual, newValue string, version int) ValueMismatch {
	m := MismatchOfShortText(expected, actual, newValue, version)
	m.Tag = ValueLongText
	return m
}

func MismatchOfTimestamp(expected, actual, newValue time.Time, version int) ValueMismatch {
	return ValueMismatch{
		Tag:      ValueTimestamp,
		Expected: packed(expected),
		Actual:   packed(actual),
		NewValue: packed(newValue),
		Version:  version,
	}
}

func MismatchOfPriority(expected, actual, newValue Priority, version int) ValueMismatch {
	return ValueMismatch{
		Tag:      ValuePriority,
		Expected: packed(expected),
		Actual:   packed(actual),
		NewValue: packed(newValue),
		Version:  version,
	}
}

func MismatchOfLabelDetails(expected, actual, newValue LabelDetails, version int) ValueMismatch {
	return ValueMismatch{
		Tag:      ValueLabelDetails,
		Expected: packed(expected),
		Actual:   packed(actual),
		NewValue: packed(newValue),
		Version:  version,
	}
}

// TextValues re-extracts a short or long text mismatch.
func (m ValueMismatch) TextValues() (expected, actual, newValue string, err error) {
	if m.Tag != ValueShortText && m.Tag != ValueLongText {
		return "", "", "", fmt.Errorf("%w: have %q, want text", ErrWrongValueTag, m.Tag)
	}
	if err = unpackAll(m, &expected, &actual, &newValue); err != nil {
		return "", "", "", err
	}
	return expected, actual, newValue, nil
}

// TimestampValues re-extracts a timestamp mismatch.
func (m ValueMismatch) TimestampValues() (expected, actual, newValue time.Time, err error) {
	if m.Tag != ValueTimestamp {
		return time.Time{}, time.Time{}, time.Time{}, fmt.Errorf("%w: have %q, want %q", ErrWrongValueTag, m.Tag, ValueTimestamp)
	}
	if err = unpackAll(m, &expected, &actual, &newValue); err != nil {
		return time.Time{}, time.Time{}, time.Time{}, err
	}
	return expected, actual, newValue, nil
}

// PriorityValues re-extracts a priority mismatch.
func (m ValueMismatch) PriorityValues() (expected, actual, newValue Priority, err error) {
	if m.Tag != ValuePriority {
		return "", "", "", fmt.Errorf("%w: have %q, want %q", ErrWrongValueTag, m.Tag, ValuePriority)
	}
	if err = unpackAll(m, &expected, &actual, &newValue); err != nil {
		return "", "", "", err
	}
	return expected, actual, newValue, nil
}

// LabelDetailsValues re-extracts a label details mismatch.
func (m ValueMismatch) LabelDetailsValues() (expected, actual, newValue LabelDetails, err error) {
	if m.Tag != ValueLabelDetails {
		return LabelDetails{}, LabelDetails{}, LabelDetails{}, fmt.Errorf("%w: have %q, want %q", ErrWrongValueTag, m.Tag, ValueLabelDetails)
	}
	if err = unpackAll(m, &expected, &actual, &newValue); err != nil {
		return LabelDetails{}, LabelDetails{}, LabelDetails{}, err
	}
	return expected, actual, newValue, nil
}

func unpackAll(m ValueMismatch, expected, actual, newValue any) error {
	if err := json.Unmarshal(m.Expected, expected); err != nil {
		return fmt.Errorf("unpack expected value: %w", err)
	}
	if err := json.Unmarshal(m.Actual, actual); err != nil {
		return fmt.Errorf("unpack actual value: %w", err)
	}
	if err := json.Unmarshal(m.NewValue, newValue); err != nil {
		return fmt.Errorf("unpack new value: %w", err)
	}
	return nil
}
