package events

import (
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
)

const (
    FilterMachineID = "machine_id"
    FilterStatus    = "status"
    FilterFrom      = "from"
    FilterTo        = "to"
    FilterLimit     = "limit"
)

const (
    UnknownFiltersReason   = "one or more filters are not in the list of the availables"
    InvalidMachineIDReason = "machine_id is not a valid guid"
    InvalidStatusReason    = "one or more statuses are not valid, check the possible values"
    InvalidFromReason      = "from is not a valid ISO date"
    InvalidToReason        = "to is not a valid ISO date"
    InvalidLimitReason     = "limit is not a valid integer"
)

const filterDateFormat = "YYYY-MM-DDTHH:mm:ss.sssZ"

// FilterSpecification describes one attribute clients can filter events by.
type FilterSpecification struct {
    Name        string   `json:"name"`
    Type        string   `json:"type"`
    Description string   `json:"description"`
    Format      string   `json:"format,omitempty"`
    Values      []string `json:"values,omitempty"`
}

var filterCatalog = []FilterSpecification{
    {
        Name:        FilterMachineID,
        Type:        "guid",
        Description: "the machine id which the events belongs",
    },
    {
        Name:        FilterStatus,
        Type:        "string",
        Description: "A comma separated string of the possible values of the status event flag",
        Values:      Statuses(),
    },
    {
        Name:        FilterFrom,
        Type:        "date",
        Description: "the from date of the reported timestamp (in string format)",
        Format:      filterDateFormat,
    },
    {
        Name:        FilterTo,
        Type:        "date",
        Description: "the to date of the reported timestamp (in string format)",
        Format:      filterDateFormat,
    },
    {
        Name:        FilterLimit,
        Type:        "int",
        Description: "the max number of records in the response, default: 100",
    },
}

// ListFilters returns the catalog of supported filters, always in the same order.
func ListFilters() []FilterSpecification {
    filters := make([]FilterSpecification, len(filterCatalog))
    for i, spec := range filterCatalog {
        filters[i] = spec
        if spec.Values != nil {
            filters[i].Values = append([]string(nil), spec.Values...)
        }
    }
    return filters
}

func isCatalogFilter(name string) bool {
    for _, spec := range filterCatalog {
        if spec.Name == name {
            return true
        }
    }
    return false
}

// ValidateFilters checks raw client filters against the catalog and returns the reasons
// they are rejected. An empty result means the filters are valid.
func ValidateFilters(rawFilters map[string]string) []string {
    reasons := make([]string, 0)
    for name := range rawFilters {
        if !isCatalogFilter(name) {
            return append(reasons, UnknownFiltersReason)
        }
    }

    if value, found := rawFilters[FilterMachineID]; found {
        if _, err := uuid.Parse(value); err != nil {
            reasons = append(reasons, InvalidMachineIDReason)
        }
    }
    if value, found := rawFilters[FilterStatus]; found {
        for _, status := range strings.Split(value, ",") {
            if !IsValidStatus(status) {
                reasons = append(reasons, InvalidStatusReason)
                break
            }
        }
    }
    if value, found := rawFilters[FilterFrom]; found && !isValidFilterDate(value) {
        reasons = append(reasons, InvalidFromReason)
    }
    if value, found := rawFilters[FilterTo]; found && !isValidFilterDate(value) {
        reasons = append(reasons, InvalidToReason)
    }
    if value, found := rawFilters[FilterLimit]; found {
        if _, err := strconv.Atoi(value); err != nil {
            reasons = append(reasons, InvalidLimitReason)
        }
    }
    return reasons
}

// filterDateLayouts are the ISO-like shapes a catalog-length date may take: a T or space
// separator, an optional fraction, and a Z, a colon offset or a bare offset.
var filterDateLayouts = []string{
    time.RFC3339Nano,
    "2006-01-02 15:04:05.999999999Z07:00",
    "2006-01-02T15:04:05.999999999Z0700",
    "2006-01-02 15:04:05.999999999Z0700",
    "2006-01-02T15:04:05.999999999",
    "2006-01-02 15:04:05.999999999",
}

// isValidFilterDate only parses values with the length of the catalog format
// (YYYY-MM-DDTHH:mm:ss.sssZ), any other length is accepted as is.
func isValidFilterDate(value string) bool {
    if len(value) != len(filterDateFormat) {
        return true
    }
    for _, layout := range filterDateLayouts {
        if _, err := time.Parse(layout, value); err == nil {
            return true
        }
    }
    return false
}
