package events

import (
    "strconv"
    "strings"
)

const DefaultLimit = 100

// Field is a logical attribute of a stored envelope. Store adapters map it to their own paths.
type Field string

const (
    FieldEventID   Field = "id"
    FieldMachineID Field = "machine_id"
    FieldStatus    Field = "status"
    FieldTimestamp Field = "timestamp"
    FieldDeleted   Field = "deleted"
)

type Operator int

const (
    OpEq Operator = iota
    OpIn
    OpGte
    OpLte
)

func (o Operator) String() string {
    switch o {
    case OpEq:
        return "eq"
    case OpIn:
        return "in"
    case OpGte:
        return "gte"
    case OpLte:
        return "lte"
    default:
        return "unknown"
    }
}

type Condition struct {
    Field    Field
    Operator Operator
    // Value holds the operand of OpEq, OpGte and OpLte, Values the operand of OpIn.
    Value  any
    Values []string
}

// Predicate is the conjunction of its conditions.
type Predicate []Condition

type SortOrder struct {
    Field      Field
    Descending bool
}

type Query struct {
    Predicate Predicate
    Sort      *SortOrder
    Limit     int
}

func notDeleted() Condition {
    return Condition{Field: FieldDeleted, Operator: OpEq, Value: false}
}

func newestFirst() *SortOrder {
    return &SortOrder{Field: FieldTimestamp, Descending: true}
}

func normalizeLimit(limit int) int {
    if limit <= 0 {
        return DefaultLimit
    }
    return limit
}

// BuildQuery turns client filters into a store query. Filters are expected to be
// validated already: unknown keys are ignored and an unusable limit keeps the default.
func BuildQuery(rawFilters map[string]string) Query {
    query := Query{
        Predicate: Predicate{notDeleted()},
        Limit:     DefaultLimit,
    }
    for _, spec := range filterCatalog {
        value, found := rawFilters[spec.Name]
        if !found {
            continue
        }
        switch spec.Name {
        case FilterMachineID:
            query.Predicate = append(query.Predicate, Condition{Field: FieldMachineID, Operator: OpEq, Value: value})
        case FilterStatus:
            query.Predicate = append(query.Predicate, Condition{Field: FieldStatus, Operator: OpIn, Values: strings.Split(value, ",")})
        case FilterFrom:
            query.Predicate = append(query.Predicate, Condition{Field: FieldTimestamp, Operator: OpGte, Value: value})
        case FilterTo:
            query.Predicate = append(query.Predicate, Condition{Field: FieldTimestamp, Operator: OpLte, Value: value})
        case FilterLimit:
            if limit, err := strconv.Atoi(value); err == nil {
                query.Limit = normalizeLimit(limit)
            }
        }
    }
    return query
}

func byIDQuery(id string) Query {
    return Query{
        Predicate: Predicate{
            {Field: FieldEventID, Operator: OpEq, Value: id},
            notDeleted(),
        },
        Limit: 1,
    }
}

func byMachineIDQuery(machineID string, limit int) Query {
    return Query{
        Predicate: Predicate{
            {Field: FieldMachineID, Operator: OpEq, Value: machineID},
            notDeleted(),
        },
        Sort:  newestFirst(),
        Limit: normalizeLimit(limit),
    }
}

func byStatusQuery(status string, limit int) Query {
    return Query{
        Predicate: Predicate{
            {Field: FieldStatus, Operator: OpEq, Value: status},
            notDeleted(),
        },
        Sort:  newestFirst(),
        Limit: normalizeLimit(limit),
    }
}

func mostRecentQuery(limit int) Query {
    return Query{
        Predicate: Predicate{notDeleted()},
        Sort:      newestFirst(),
        Limit:     normalizeLimit(limit),
    }
}
