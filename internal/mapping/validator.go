package mapping

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

type IssueType string

const (
	IssueError      IssueType = "error"
	IssueWarning    IssueType = "warning"
	IssueSuggestion IssueType = "suggestion"
)

type IssueCategory string

const (
	CategoryStructural   IssueCategory = "structural"
	CategoryFieldType    IssueCategory = "field_type"
	CategoryBestPractice IssueCategory = "best_practice"
)

// Limits above which a mapping draws a warning.
const (
	MaxFieldCount   = 1000
	MaxNestingDepth = 3
)

type Issue struct {
	Type           IssueType     `json:"type"`
	Category       IssueCategory `json:"category"`
	Field          string        `json:"field,omitempty"`
	Message        string        `json:"message"`
	Recommendation string        `json:"recommendation"`
}

type ValidationReport struct {
	Valid            bool     `json:"valid"`
	Score            float64  `json:"score"`
	FieldCount       int      `json:"field_count"`
	NestingDepth     int      `json:"nesting_depth"`
	HasTextFields    bool     `json:"has_text_fields"`
	HasKeywordFields bool     `json:"has_keyword_fields"`
	Issues           []Issue  `json:"issues"`
	Summary          string   `json:"summary"`
	Recommendations  []string `json:"recommendations"`
}

var validFieldTypes = map[string]struct{}{}

func init() {
	for _, t := range []string{
		"text", "keyword", "integer", "long", "short", "byte", "double", "float", "half_float", "scaled_float",
		"date", "boolean", "binary", "integer_range", "float_range", "long_range", "double_range", "date_range",
		"ip", "completion", "token_count", "murmur3", "annotated-text", "percolator", "join", "rank_feature",
		"rank_features", "dense_vector", "sparse_vector", "search_as_you_type", "alias", "flattened",
		"nested", "object", "geo_point", "geo_shape", "point", "shape", "histogram",
	} {
		validFieldTypes[t] = struct{}{}
	}
}

var abbreviations = map[string]string{
	"DOB":  "date_of_birth",
	"SSN":  "social_security_number",
	"ID":   "identifier",
	"NUM":  "number",
	"DESC": "description",
}

// Validate inspects a mapping's structure and reports errors, warnings and
// suggestions. It does not contact Elasticsearch.
func Validate(mapping map[string]interface{}) *ValidationReport {
	r := &ValidationReport{}

	_, hasMappings := mapping["mappings"]
	_, hasProps := mapping["properties"]
	props, err := ExtractProperties(mapping)
	switch {
	case !hasMappings && !hasProps && err != nil:
		r.add(Issue{Type: IssueError, Category: CategoryStructural,
			Message:        "Missing 'mappings' or 'properties' section",
			Recommendation: "Add a 'mappings' section with 'properties'"})
	case len(props) == 0:
		r.add(Issue{Type: IssueError, Category: CategoryStructural,
			Message:        "No field properties defined",
			Recommendation: "Define at least one field in properties"})
	default:
		r.walk(props, "", 0)
		r.checkLimits()
	}

	r.finish()
	return r
}

func (r *ValidationReport) add(i Issue) {
	r.Issues = append(r.Issues, i)
}

func (r *ValidationReport) walk(props map[string]interface{}, parent string, depth int) {
	if depth > r.NestingDepth {
		r.NestingDepth = depth
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := name
		if parent != "" {
			path = parent + "." + name
		}
		r.FieldCount++

		cfg, ok := props[name].(map[string]interface{})
		if !ok {
			r.add(Issue{Type: IssueError, Category: CategoryFieldType, Field: path,
				Message:        "Field configuration must be an object",
				Recommendation: "Define field properties as a JSON object"})
			continue
		}

		fieldType, _ := cfg["type"].(string)
		children, hasChildren := cfg["properties"].(map[string]interface{})
		if fieldType == "" {
			if !hasChildren {
				r.add(Issue{Type: IssueError, Category: CategoryFieldType, Field: path,
					Message:        "Field is missing required 'type' property",
					Recommendation: "Add a field type such as 'text', 'keyword', 'integer' or 'date'"})
				continue
			}
			fieldType = string(FieldTypeObject)
		}

		if _, valid := validFieldTypes[fieldType]; !valid {
			r.add(Issue{Type: IssueError, Category: CategoryFieldType, Field: path,
				Message:        fmt.Sprintf("Invalid field type: '%s'", fieldType),
				Recommendation: "Use a valid Elasticsearch field type"})
			continue
		}

		switch FieldType(fieldType) {
		case FieldTypeText:
			r.HasTextFields = true
			sub, _ := cfg["fields"].(map[string]interface{})
			if _, ok := sub["keyword"]; !ok {
				r.add(Issue{Type: IssueSuggestion, Category: CategoryBestPractice, Field: path,
					Message:        "Text field should have a keyword sub-field for sorting and aggregations",
					Recommendation: "Add 'fields': {'keyword': {'type': 'keyword'}}"})
			}
		case FieldTypeKeyword:
			r.HasKeywordFields = true
			if _, ok := cfg["analyzer"]; ok {
				r.add(Issue{Type: IssueWarning, Category: CategoryBestPractice, Field: path,
					Message:        "Keyword fields should not use analyzers",
					Recommendation: "Remove 'analyzer' or change the type to 'text'"})
			}
		case FieldTypeDate:
			if f, _ := cfg["format"].(string); f == "" {
				r.add(Issue{Type: IssueSuggestion, Category: CategoryBestPractice, Field: path,
					Message:        "Date field should specify a format",
					Recommendation: "Add a format, e.g. 'format': 'yyyy-MM-dd'"})
			}
		}

		if hasChildren && len(children) > 0 {
			r.walk(children, path, depth+1)
		}

		if name == strings.ToUpper(name) && name != strings.ToLower(name) {
			r.add(Issue{Type: IssueSuggestion, Category: CategoryBestPractice, Field: path,
				Message:        fmt.Sprintf("Field name '%s' uses uppercase; lowercase is preferred", name),
				Recommendation: fmt.Sprintf("Consider using '%s' instead", strings.ToLower(name))})
		}
		if expanded, ok := abbreviations[name]; ok {
			r.add(Issue{Type: IssueSuggestion, Category: CategoryBestPractice, Field: path,
				Message:        fmt.Sprintf("Abbreviated field name '%s' should be more descriptive", name),
				Recommendation: fmt.Sprintf("Consider using '%s' for clarity", expanded)})
		}
	}
}

func (r *ValidationReport) checkLimits() {
	if r.FieldCount > MaxFieldCount {
		r.add(Issue{Type: IssueWarning, Category: CategoryBestPractice,
			Message:        fmt.Sprintf("High field count: %d fields", r.FieldCount),
			Recommendation: fmt.Sprintf("Consider reducing fields below %d for better performance", MaxFieldCount)})
	}
	if r.NestingDepth > MaxNestingDepth {
		r.add(Issue{Type: IssueWarning, Category: CategoryBestPractice,
			Message:        fmt.Sprintf("Deep nesting detected: %d levels", r.NestingDepth),
			Recommendation: fmt.Sprintf("Flatten the structure or use the nested type beyond %d levels", MaxNestingDepth)})
	}
}

func (r *ValidationReport) finish() {
	errs, warns, suggs := r.counts()
	r.Valid = errs == 0

	score := 1 - 0.2*float64(errs) - 0.05*float64(warns) - 0.01*float64(suggs)
	r.Score = math.Max(0, math.Round(score*100)/100)

	r.Summary = fmt.Sprintf("%d fields, %d errors, %d warnings, %d suggestions", r.FieldCount, errs, warns, suggs)

	seen := map[string]bool{}
	for _, i := range r.Issues {
		if i.Recommendation != "" && !seen[i.Recommendation] {
			seen[i.Recommendation] = true
			r.Recommendations = append(r.Recommendations, i.Recommendation)
		}
	}
}

func (r *ValidationReport) counts() (errs, warns, suggs int) {
	for _, i := range r.Issues {
		switch i.Type {
		case IssueError:
			errs++
		case IssueWarning:
			warns++
		case IssueSuggestion:
			suggs++
		}
	}
	return errs, warns, suggs
}

// Err returns the error-level issues combined, or nil for a valid mapping.
func (r *ValidationReport) Err() error {
	var result *multierror.Error
	for _, i := range r.Issues {
		if i.Type != IssueError {
			continue
		}
		if i.Field != "" {
			result = multierror.Append(result, fmt.Errorf("%s: %s", i.Field, i.Message))
		} else {
			result = multierror.Append(result, fmt.Errorf("%s", i.Message))
		}
	}
	return result.ErrorOrNil()
}
