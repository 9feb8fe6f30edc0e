// Package extract holds the field extraction cascades shared by the spiders.
//
// Every field is resolved by an ordered list of strategies. The first strategy
// that yields a non-empty value wins; failures are collected rather than
// aborting, so one missing field never blocks another.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotFound reports that a strategy found nothing to extract.
var ErrNotFound = errors.New("not found")

// Strategy is one attempt at extracting a field from a DOM selection.
type Strategy struct {
	Name    string
	Extract func(sel *goquery.Selection) (string, error)
}

// FieldError records why a strategy did not produce a value.
type FieldError struct {
	Field    string
	Strategy string
	Err      error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Field, e.Strategy, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// Diagnostics is the per-record list of extraction failures.
type Diagnostics []FieldError

// Add appends a failure.
func (d *Diagnostics) Add(field, strategy string, err error) {
	if err == nil {
		return
	}
	*d = append(*d, FieldError{Field: field, Strategy: strategy, Err: err})
}

// Merge appends every failure from other.
func (d *Diagnostics) Merge(other Diagnostics) {
	*d = append(*d, other...)
}

// Fields returns the distinct field names that have failures.
func (d Diagnostics) Fields() []string {
	seen := make(map[string]struct{}, len(d))
	var out []string
	for _, fe := range d {
		if _, ok := seen[fe.Field]; ok {
			continue
		}
		seen[fe.Field] = struct{}{}
		out = append(out, fe.Field)
	}
	return out
}

// Result is the outcome of running a cascade for one field.
type Result struct {
	Field    string
	Value    string
	Strategy string
	Errors   Diagnostics
}

// Found reports whether the cascade produced a value.
func (r Result) Found() bool { return r.Value != "" }

// Ptr returns the value as a pointer, nil when nothing was found.
func (r Result) Ptr() *string {
	if r.Value == "" {
		return nil
	}
	v := r.Value
	return &v
}

// Cascade runs strategies in order until one returns a non-empty value.
// When all strategies fail the returned Result has an empty Value and one
// error per attempted strategy.
func Cascade(field string, sel *goquery.Selection, strategies ...Strategy) Result {
	res := Result{Field: field}
	for _, s := range strategies {
		value, err := safeExtract(s, sel)
		value = strings.TrimSpace(value)
		if err == nil && value == "" {
			err = ErrNotFound
		}
		if err != nil {
			res.Errors.Add(field, s.Name, err)
			continue
		}
		res.Value = value
		res.Strategy = s.Name
		return res
	}
	return res
}

func safeExtract(s Strategy, sel *goquery.Selection) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	if sel == nil || s.Extract == nil {
		return "", ErrNotFound
	}
	return s.Extract(sel)
}

// Text builds a strategy returning the text of the first element matching selector.
func Text(selector string, clean func(string) string) Strategy {
	return Strategy{
		Name: "text:" + selector,
		Extract: func(sel *goquery.Selection) (string, error) {
			found := sel.Find(selector).First()
			if found.Length() == 0 {
				return "", ErrNotFound
			}
			text := found.Text()
			if clean != nil {
				text = clean(text)
			}
			return text, nil
		},
	}
}

// Attr builds a strategy returning an attribute of the first element matching selector.
func Attr(selector, attr string, clean func(string) string) Strategy {
	return Strategy{
		Name: "attr:" + selector + "@" + attr,
		Extract: func(sel *goquery.Selection) (string, error) {
			found := sel.Find(selector).First()
			if found.Length() == 0 {
				return "", ErrNotFound
			}
			value, ok := found.Attr(attr)
			if !ok {
				return "", ErrNotFound
			}
			if clean != nil {
				value = clean(value)
			}
			return value, nil
		},
	}
}

// Static builds a strategy that returns a precomputed value, used to put
// structured-data values at the head of a cascade.
func Static(name, value string) Strategy {
	return Strategy{
		Name: name,
		Extract: func(*goquery.Selection) (string, error) {
			if value == "" {
				return "", ErrNotFound
			}
			return value, nil
		},
	}
}

// CollapseSpace trims and collapses runs of whitespace.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SelfAttr builds a strategy reading an attribute of the selection itself
// rather than a descendant.
func SelfAttr(attr string, clean func(string) string) Strategy {
	return Strategy{
		Name: "self@" + attr,
		Extract: func(sel *goquery.Selection) (string, error) {
			value, ok := sel.Attr(attr)
			if !ok {
				return "", ErrNotFound
			}
			if clean != nil {
				value = clean(value)
			}
			return value, nil
		},
	}
}

// LinkWithText builds a strategy returning the href of the first anchor whose
// visible text equals text, ignoring case.
func LinkWithText(text string) Strategy {
	return Strategy{
		Name: "link-text:" + text,
		Extract: func(sel *goquery.Selection) (string, error) {
			var href string
			sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
				if strings.EqualFold(CollapseSpace(a.Text()), text) {
					href, _ = a.Attr("href")
					return false
				}
				return true
			})
			if href == "" {
				return "", ErrNotFound
			}
			return href, nil
		},
	}
}

// Scan builds a strategy that walks every element matching selector and
// returns the first non-empty result of match applied to its text.
func Scan(name, selector string, match func(string) string) Strategy {
	return Strategy{
		Name: "scan:" + name,
		Extract: func(sel *goquery.Selection) (string, error) {
			var value string
			sel.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
				value = match(el.Text())
				return value == ""
			})
			if value == "" {
				return "", ErrNotFound
			}
			return value, nil
		},
	}
}
