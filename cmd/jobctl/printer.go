package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/mkrupp/jobhunter/internal/client/login"
	"github.com/mkrupp/jobhunter/internal/domain"
)

// printer writes CLI output and doubles as the login navigator: navigating
// means telling the user where the web app would go.
type printer struct {
	out, err io.Writer

	ok    *color.Color
	bad   *color.Color
	faint *color.Color
}

var _ login.Navigator = (*printer)(nil)

func newPrinter(out, err io.Writer) *printer {
	return &printer{
		out:   out,
		err:   err,
		ok:    color.New(color.FgGreen, color.Bold),
		bad:   color.New(color.FgRed, color.Bold),
		faint: color.New(color.Faint),
	}
}

func (p *printer) disableColor() {
	p.ok.DisableColor()
	p.bad.DisableColor()
	p.faint.DisableColor()
}

// Navigate implements login.Navigator.
func (p *printer) Navigate(_ context.Context, dest domain.Destination) {
	p.ok.Fprint(p.out, "→ ")
	fmt.Fprintln(p.out, dest.String())
}

func (p *printer) successf(format string, args ...any) {
	p.ok.Fprint(p.out, "✓ ")
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) errorf(format string, args ...any) {
	p.bad.Fprint(p.err, "✗ ")
	fmt.Fprintf(p.err, format+"\n", args...)
}

func (p *printer) failure(err *login.Error) {
	p.bad.Fprintf(p.err, "✗ %s: ", err.Kind)
	fmt.Fprintln(p.err, err.Message)

	fields := make([]string, 0, len(err.Fields))
	for field := range err.Fields {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	for _, field := range fields {
		p.faint.Fprintf(p.err, "  %s: %s\n", field, err.Fields[field])
	}
}

func (p *printer) identity(identity domain.Identity) {
	fmt.Fprintf(p.out, "%s (%s)\n", identity.Email, identity.Role)

	if identity.UserProfile.FullName != "" {
		p.faint.Fprintf(p.out, "  name:        %s\n", identity.UserProfile.FullName)
	}

	p.faint.Fprintf(p.out, "  id:          %s\n", identity.ID)
	p.faint.Fprintf(p.out, "  onboarded:   %t\n", identity.UserProfile.DoneOnboarding)
}
