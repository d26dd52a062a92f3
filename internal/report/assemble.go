// Package report turns capability results into the single markdown answer
// returned to the traveler.
package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/naviable/naviable-go/internal/agent"
)

const (
	NoFlights = "No flight options found."
	NoHotels  = "No hotel options found."

	// Fallback is returned when no capability produced any text.
	Fallback = "I couldn't put together an answer this time. Could you rephrase your request?"
)

var (
	fencePattern = regexp.MustCompile("(?s)```.*?```")
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// Input is everything a routing pass accumulated.
type Input struct {
	Results []agent.Result
	// Clarification, when set, replaces the assembled answer entirely.
	Clarification string
}

// Summary is the travel plan rendered by Render.
type Summary struct {
	// Overview holds general chat replies that precede the sections.
	Overview    []string
	Weather     []string
	Flights     []agent.FlightOption
	Hotels      []agent.HotelOption
	FlightNotes []string
	HotelNotes  []string
	FollowUps   []string
}

// Assemble produces the final markdown for one routing pass. Passes that only
// reached general chat return the chat reply; passes that reached a travel
// capability return a rendered Summary.
func Assemble(in Input) string {
	if in.Clarification != "" {
		return in.Clarification
	}

	travel := lo.Filter(in.Results, func(r agent.Result, _ int) bool { return r.Capability.Travel() })
	if len(travel) == 0 {
		replies := lo.FilterMap(in.Results, func(r agent.Result, _ int) (string, bool) {
			text := Sanitize(r.Reply)
			return text, text != ""
		})
		if len(replies) == 0 {
			return Fallback
		}
		return strings.Join(replies, "\n\n")
	}

	return Render(Summarize(in.Results))
}

// Summarize collects options, weather and follow-ups across results.
func Summarize(results []agent.Result) Summary {
	var s Summary
	for _, r := range results {
		if w := Sanitize(r.Weather); w != "" {
			s.Weather = append(s.Weather, w)
		}
		if !r.Capability.Travel() {
			if text := Sanitize(r.Reply); text != "" {
				s.Overview = append(s.Overview, text)
			}
			continue
		}
		s.Flights = append(s.Flights, r.Flights...)
		s.Hotels = append(s.Hotels, r.Hotels...)

		if q := Sanitize(r.FollowUp); q != "" {
			s.FollowUps = append(s.FollowUps, q)
		}
		if note := resultNote(r); note != "" {
			if r.Capability == agent.Flight {
				s.FlightNotes = append(s.FlightNotes, note)
			} else {
				s.HotelNotes = append(s.HotelNotes, note)
			}
		}
	}
	s.Overview = lo.Uniq(s.Overview)
	s.Weather = lo.Uniq(s.Weather)
	s.FollowUps = lo.Uniq(s.FollowUps)
	return s
}

// resultNote keeps the reply text of a result that yielded no options, so a
// degraded notice or an unstructured answer is not lost.
func resultNote(r agent.Result) string {
	if len(r.Flights) > 0 || len(r.Hotels) > 0 {
		return ""
	}
	if !r.Degraded && r.FollowUp != "" {
		return ""
	}
	return Sanitize(r.Reply)
}

// Render writes any overview text, then the sections in fixed order: weather,
// flights, hotels, follow-up. The flight and hotel sections are always present.
func Render(s Summary) string {
	var b strings.Builder

	if len(s.Overview) > 0 {
		b.WriteString(strings.Join(s.Overview, "\n\n"))
		b.WriteString("\n\n")
	}

	if len(s.Weather) > 0 {
		b.WriteString("## Weather\n\n")
		b.WriteString(strings.Join(s.Weather, "\n\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("## Flights\n\n")
	if len(s.Flights) == 0 {
		b.WriteString(NoFlights + "\n")
	}
	for _, f := range s.Flights {
		b.WriteString(flightLine(f))
	}
	writeNotes(&b, s.FlightNotes)
	b.WriteString("\n")

	b.WriteString("## Hotels\n\n")
	if len(s.Hotels) == 0 {
		b.WriteString(NoHotels + "\n")
	}
	for _, h := range s.Hotels {
		b.WriteString(hotelLine(h))
	}
	writeNotes(&b, s.HotelNotes)

	if len(s.FollowUps) > 0 {
		b.WriteString("\n## Follow-up\n\n")
		b.WriteString(strings.Join(s.FollowUps, "\n"))
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()) + "\n"
}

func writeNotes(b *strings.Builder, notes []string) {
	for _, n := range notes {
		b.WriteString("\n")
		b.WriteString(n)
		b.WriteString("\n")
	}
}

func flightLine(f agent.FlightOption) string {
	return optionLine(lo.CoalesceOrEmpty(clean(f.Airline), "Flight"), f.Price, f.Dates, f.Accessibility, f.Link)
}

func hotelLine(h agent.HotelOption) string {
	return optionLine(lo.CoalesceOrEmpty(clean(h.Name), "Hotel"), h.Price, h.Dates, h.Accessibility, h.Link)
}

func optionLine(title, price, dates, access, link string) string {
	details := lo.Compact([]string{clean(price), clean(dates)})
	line := "- **" + title + "**"
	if len(details) > 0 {
		line += ": " + strings.Join(details, ", ")
	}
	if a := clean(access); a != "" {
		line += fmt.Sprintf(". Accessibility: %s", a)
	}
	if l := clean(link); l != "" {
		line += fmt.Sprintf(". [Book](%s)", l)
	}
	return line + "\n"
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

// Sanitize removes code blocks, raw JSON and table rows from model text.
// A JSON object or array is dropped whole, even when it spans several lines.
func Sanitize(text string) string {
	text = fencePattern.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "|") {
			continue
		}
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if n := jsonLines(lines[i:]); n > 0 {
				i += n - 1
				continue
			}
		}
		kept = append(kept, lines[i])
	}
	text = strings.Join(kept, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// jsonLines reports how many leading lines are covered by one JSON value that
// ends its line, or 0 when the lines do not start with such a value.
func jsonLines(lines []string) int {
	rest := strings.Join(lines, "\n")
	dec := json.NewDecoder(strings.NewReader(rest))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return 0
	}
	end := int(dec.InputOffset())
	tail := rest[end:]
	if nl := strings.IndexByte(tail, '\n'); nl >= 0 {
		tail = tail[:nl]
	}
	if strings.TrimSpace(tail) != "" {
		return 0
	}
	return strings.Count(rest[:end], "\n") + 1
}
