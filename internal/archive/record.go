package archive

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ArchiveDateLayout is the document form of state.archiveDate.
const ArchiveDateLayout = "2006-01-02 15:04:05"

// Status is the persisted outcome of an archive's last run.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
	StatusNone   Status = "none"
)

// Meta identifies an archive within the managed directory.
type Meta struct {
	Name        string `yaml:"name" validate:"required,max=128"`
	Description string `yaml:"description"`
}

// Manager is the receiving side for streamed archives.
type Manager struct {
	Host string `yaml:"managerHost" validate:"required"`
	User string `yaml:"managerUser" validate:"required"`
	Port int    `yaml:"managerPort" validate:"gte=0,lte=65535"`
}

// Target is one host:path partition of an archive.
type Target struct {
	Host string
	Path string
}

func (t Target) String() string {
	return t.Host + ":" + t.Path
}

// Targets carries the ordered partition list. The document form is a
// single comma-separated string under the partitions key.
type Targets []Target

type targetsDoc struct {
	Partitions string `yaml:"partitions"`
}

// UnmarshalYAML parses the partitions string into the ordered list.
func (t *Targets) UnmarshalYAML(value *yaml.Node) error {
	var doc targetsDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	parsed, err := ParseTargets(doc.Partitions)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML renders the ordered list back into the partitions string.
func (t Targets) MarshalYAML() (interface{}, error) {
	parts := make([]string, 0, len(t))
	for _, target := range t {
		parts = append(parts, target.String())
	}
	return targetsDoc{Partitions: strings.Join(parts, ",")}, nil
}

// ParseTargets splits "host1:/p1,host2:/p2" preserving order.
func ParseTargets(partitions string) (Targets, error) {
	trimmed := strings.TrimSpace(partitions)
	if trimmed == "" {
		return nil, fmt.Errorf("partitions is empty")
	}
	pieces := strings.Split(trimmed, ",")
	targets := make(Targets, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		host, path, ok := strings.Cut(piece, ":")
		if !ok || host == "" || path == "" {
			return nil, fmt.Errorf("partition %q is not host:path", piece)
		}
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("partition %q path must be absolute", piece)
		}
		targets = append(targets, Target{Host: host, Path: path})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("partitions is empty")
	}
	return targets, nil
}

// WorkerPaths locates the on-client archiver for one host.
type WorkerPaths struct {
	ScriptDir string `yaml:"scriptDir"`
	LibPath   string `yaml:"tclLibPath"`
}

// WorkerMap holds the default worker paths plus per-host overrides.
type WorkerMap struct {
	Default WorkerPaths
	Hosts   map[string]WorkerPaths
}

// Resolve applies the override-then-fallback rule for a host.
func (w WorkerMap) Resolve(host string) WorkerPaths {
	if paths, ok := w.Hosts[host]; ok {
		return paths
	}
	return w.Default
}

// UnmarshalYAML reads the keyed map, splitting out the default entry.
func (w *WorkerMap) UnmarshalYAML(value *yaml.Node) error {
	raw := map[string]WorkerPaths{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	def, ok := raw["default"]
	if !ok {
		return fmt.Errorf("worker map has no default entry")
	}
	delete(raw, "default")
	w.Default = def
	if len(raw) > 0 {
		w.Hosts = raw
	} else {
		w.Hosts = nil
	}
	return nil
}

// MarshalYAML renders the default entry alongside host overrides with
// stable key order.
func (w WorkerMap) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	appendEntry := func(key string, paths WorkerPaths) error {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(key); err != nil {
			return err
		}
		valNode := &yaml.Node{}
		if err := valNode.Encode(paths); err != nil {
			return err
		}
		node.Content = append(node.Content, keyNode, valNode)
		return nil
	}
	if err := appendEntry("default", w.Default); err != nil {
		return nil, err
	}
	hosts := make([]string, 0, len(w.Hosts))
	for host := range w.Hosts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		if err := appendEntry(host, w.Hosts[host]); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Schedule maps each weekday to the rule that runs on it.
type Schedule struct {
	Mon Rule `yaml:"Mon"`
	Tue Rule `yaml:"Tue"`
	Wed Rule `yaml:"Wed"`
	Thu Rule `yaml:"Thu"`
	Fri Rule `yaml:"Fri"`
	Sat Rule `yaml:"Sat"`
	Sun Rule `yaml:"Sun"`
}

// Rule returns the scheduled rule for a weekday.
func (s Schedule) Rule(day time.Weekday) Rule {
	var r Rule
	switch day {
	case time.Monday:
		r = s.Mon
	case time.Tuesday:
		r = s.Tue
	case time.Wednesday:
		r = s.Wed
	case time.Thursday:
		r = s.Thu
	case time.Friday:
		r = s.Fri
	case time.Saturday:
		r = s.Sat
	case time.Sunday:
		r = s.Sun
	}
	if r == "" {
		return RuleNone
	}
	return r
}

// HasMonthly reports whether any weekday carries the monthly tier.
func (s Schedule) HasMonthly() bool {
	for _, r := range []Rule{s.Mon, s.Tue, s.Wed, s.Thu, s.Fri, s.Sat, s.Sun} {
		if r == RuleMonthly {
			return true
		}
	}
	return false
}

func (s Schedule) rules() []Rule {
	return []Rule{s.Mon, s.Tue, s.Wed, s.Thu, s.Fri, s.Sat, s.Sun}
}

// Storage describes destinations and set pools.
type Storage struct {
	LogDir       string `yaml:"logDir" validate:"required"`
	RemoteDevice string `yaml:"remoteDevice" validate:"required"`
	ListFileDir  string `yaml:"listFileDir" validate:"required"`
	DailySets    int    `yaml:"dailySets" validate:"gte=0"`
	WeeklySets   int    `yaml:"weeklySets" validate:"gte=0"`
	MonthlySets  int    `yaml:"monthlySets" validate:"gte=0"`
}

// TotalSets returns the pool size for a rule. The none rule has no pool.
func (s Storage) TotalSets(r Rule) int {
	switch r {
	case RuleDaily:
		return s.DailySets
	case RuleWeekly:
		return s.WeeklySets
	case RuleMonthly:
		return s.MonthlySets
	}
	return 0
}

// Notifications holds the operator address and the three hook commands.
type Notifications struct {
	AdminUser   string `yaml:"adminUser"`
	NotifyTape  string `yaml:"notifyTape"`
	NotifyTar   string `yaml:"notifyTar"`
	NotifyError string `yaml:"notifyError"`
}

// SetCounters tracks the rotating set position per rule. Nil means the
// counter has never advanced.
type SetCounters struct {
	Monthly *int `yaml:"monthly,omitempty"`
	Weekly  *int `yaml:"weekly,omitempty"`
	Daily   *int `yaml:"daily,omitempty"`
	None    *int `yaml:"none,omitempty"`
}

// Get returns the counter for a rule and whether it has ever been set.
func (c SetCounters) Get(r Rule) (int, bool) {
	p := c.ptr(r)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// Set stores the counter for a rule.
func (c *SetCounters) Set(r Rule, value int) {
	p := c.ptr(r)
	if p == nil {
		return
	}
	v := value
	*p = &v
}

func (c *SetCounters) ptr(r Rule) **int {
	switch r {
	case RuleMonthly:
		return &c.Monthly
	case RuleWeekly:
		return &c.Weekly
	case RuleDaily:
		return &c.Daily
	case RuleNone:
		return &c.None
	}
	return nil
}

func (c SetCounters) clone() SetCounters {
	out := SetCounters{}
	for _, r := range []Rule{RuleMonthly, RuleWeekly, RuleDaily, RuleNone} {
		if v, ok := c.Get(r); ok {
			out.Set(r, v)
		}
	}
	return out
}

// State is the mutable portion of the record.
type State struct {
	CurrentRule Rule        `yaml:"currentRule"`
	ArchiveDate string      `yaml:"archiveDate"`
	Status      Status      `yaml:"status"`
	Command     string      `yaml:"command"`
	CurrentSet  SetCounters `yaml:"currentSet"`
}

// ArchiveTime parses archiveDate; ok is false when it was never set.
func (s State) ArchiveTime() (time.Time, bool) {
	if strings.TrimSpace(s.ArchiveDate) == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(ArchiveDateLayout, s.ArchiveDate, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetArchiveTime records the last successful target-level archive.
func (s *State) SetArchiveTime(t time.Time) {
	s.ArchiveDate = t.Format(ArchiveDateLayout)
}

// Record is the in-memory form of one archive document.
type Record struct {
	Meta          Meta          `yaml:"meta"`
	Manager       Manager       `yaml:"manager"`
	Targets       Targets       `yaml:"targets"`
	Worker        WorkerMap     `yaml:"worker"`
	Schedule      Schedule      `yaml:"schedule"`
	Storage       Storage       `yaml:"storage"`
	Notifications Notifications `yaml:"notifications"`
	State         State         `yaml:"state"`
}

// Clone deep-copies the record so a run can mutate state freely and
// discard it on failure.
func (r *Record) Clone() *Record {
	out := *r
	out.Targets = append(Targets(nil), r.Targets...)
	if r.Worker.Hosts != nil {
		hosts := make(map[string]WorkerPaths, len(r.Worker.Hosts))
		for k, v := range r.Worker.Hosts {
			hosts[k] = v
		}
		out.Worker.Hosts = hosts
	}
	out.State.CurrentSet = r.State.CurrentSet.clone()
	return &out
}
