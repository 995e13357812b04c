package queryflags

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/brimdata/sift/compiler/semantic"
	"github.com/brimdata/sift/runtime/exec"
	"github.com/brimdata/sift/service"
)

type QueryTextFlags struct {
	parts    []string
	includes FileInput
	dashC    PlainInput
}

type Flags struct {
	QueryTextFlags
	Dialect    string
	Now        string
	NoCache    bool
	NoWarnings bool
	Lenient    bool
	Header     bool
	Stats      bool
}

func (q *QueryTextFlags) SetFlags(fs *flag.FlagSet) {
	q.includes.parts = &q.parts
	q.dashC.parts = &q.parts
	fs.Var(&q.dashC, "c", "query text (may be used multiple times)")
	fs.Var(&q.includes, "I", "source file containing query text (may be used multiple times)")
}

// Text joins the query text given by -c and -I in command line order
// with args.
func (q *QueryTextFlags) Text(args []string) (string, error) {
	text := strings.TrimSpace(strings.Join(append(q.parts, args...), "\n"))
	if text == "" {
		return "", errors.New("no query given: use -c, -I, or an argument")
	}
	return text, nil
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	f.QueryTextFlags.SetFlags(fs)
	fs.StringVar(&f.Dialect, "dialect", "", "query dialect (iql2 or legacy)")
	fs.StringVar(&f.Now, "now", "", "time relative times are anchored at (default current time)")
	fs.BoolVar(&f.NoCache, "nocache", false, "neither read nor write the query cache")
	fs.BoolVar(&f.NoWarnings, "nowarnings", false, "suppress warnings")
	fs.BoolVar(&f.Lenient, "lenient", false, "report string/int field mismatches as warnings")
	fs.BoolVar(&f.Header, "header", false, "print a header line of column names")
	fs.BoolVar(&f.Stats, "stats", false, "display execution stats on stderr")
}

// Request builds a service request for text, reading -now in timezone.
func (f *Flags) Request(text, timezone string) (service.Request, error) {
	req := service.Request{
		Query:      text,
		Dialect:    f.Dialect,
		NoCache:    f.NoCache,
		NoWarnings: f.NoWarnings,
		Lenient:    f.Lenient,
	}
	if f.Now != "" {
		loc, err := semantic.ParseLocation(timezone)
		if err != nil {
			return req, err
		}
		if req.Now, err = dateparse.ParseIn(f.Now, loc); err != nil {
			return req, fmt.Errorf("-now: %w", err)
		}
	}
	return req, nil
}

func (f *Flags) PrintStats(w io.Writer, resp *service.Response) {
	if !f.Stats {
		return
	}
	out, err := json.Marshal(struct {
		ID       string        `json:"query_id"`
		Key      string        `json:"cache_key"`
		Cached   bool          `json:"cached"`
		Progress exec.Progress `json:"progress"`
	}{resp.ID.String(), resp.Key.String(), resp.Cached, resp.Progress})
	if err != nil {
		fmt.Fprintf(w, "error marshaling stats: %s\n", err)
		return
	}
	fmt.Fprintln(w, string(out))
}

type PlainInput struct {
	parts *[]string
}

func (p *PlainInput) Set(value string) error {
	*p.parts = append(*p.parts, value)
	return nil
}

func (PlainInput) String() string {
	return ""
}

type FileInput struct {
	parts *[]string
}

func (f *FileInput) Set(value string) error {
	b, err := os.ReadFile(value)
	if err != nil {
		return err
	}
	*f.parts = append(*f.parts, string(b))
	return nil
}

func (FileInput) String() string {
	return ""
}

