package mongodb

import (
    "bytes"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "sort"
    "strings"

    "go.mongodb.org/mongo-driver/v2/bson"
)

// toBSONExtra stores unknown wire fields as native BSON elements so they stay queryable
// and can be rendered back to JSON. Keys are taken literally: a "$date" or "$numberLong"
// key is an ordinary field here, not an Extended JSON type marker.
func toBSONExtra(extra map[string]json.RawMessage) (bson.M, error) {
    if len(extra) == 0 {
        return nil, nil
    }
    doc := make(bson.M, len(extra))
    for key, raw := range extra {
        value, err := jsonToBSONValue(raw)
        if err != nil {
            return nil, fmt.Errorf("field %q: %w", key, err)
        }
        doc[key] = value
    }
    return doc, nil
}

func fromBSONExtra(doc bson.M) (map[string]json.RawMessage, error) {
    if len(doc) == 0 {
        return nil, nil
    }
    extra := make(map[string]json.RawMessage, len(doc))
    for key, value := range doc {
        var buf bytes.Buffer
        err := writeBSONValueAsJSON(&buf, value)
        if err != nil {
            return nil, fmt.Errorf("field %q: %w", key, err)
        }
        extra[key] = buf.Bytes()
    }
    return extra, nil
}

func jsonToBSONValue(raw json.RawMessage) (any, error) {
    dec := json.NewDecoder(bytes.NewReader(raw))
    dec.UseNumber()
    value, err := decodeJSONValue(dec)
    if err != nil {
        return nil, err
    }
    if _, err := dec.Token(); !errors.Is(err, io.EOF) {
        return nil, fmt.Errorf("unexpected data after json value")
    }
    return value, nil
}

// decodeJSONValue walks the token stream so objects keep their key order as bson.D.
func decodeJSONValue(dec *json.Decoder) (any, error) {
    token, err := dec.Token()
    if err != nil {
        return nil, err
    }
    switch t := token.(type) {
    case json.Delim:
        switch t {
        case '{':
            doc := bson.D{}
            for dec.More() {
                keyToken, err := dec.Token()
                if err != nil {
                    return nil, err
                }
                key, ok := keyToken.(string)
                if !ok {
                    return nil, fmt.Errorf("unexpected object key %v", keyToken)
                }
                value, err := decodeJSONValue(dec)
                if err != nil {
                    return nil, err
                }
                doc = append(doc, bson.E{Key: key, Value: value})
            }
            if _, err := dec.Token(); err != nil {
                return nil, err
            }
            return doc, nil
        case '[':
            array := bson.A{}
            for dec.More() {
                value, err := decodeJSONValue(dec)
                if err != nil {
                    return nil, err
                }
                array = append(array, value)
            }
            if _, err := dec.Token(); err != nil {
                return nil, err
            }
            return array, nil
        default:
            return nil, fmt.Errorf("unexpected delimiter %v", t)
        }
    case json.Number:
        return numberToBSON(t), nil
    default:
        // string, bool or nil
        return t, nil
    }
}

// numberToBSON keeps integers that fit as int64 and uses Decimal128 for integers that do not,
// so their digits survive a round trip.
func numberToBSON(number json.Number) any {
    text := number.String()
    if i, err := number.Int64(); err == nil {
        return i
    }
    if !strings.ContainsAny(text, ".eE") {
        if d, err := bson.ParseDecimal128(text); err == nil {
            return d
        }
        return text
    }
    if f, err := number.Float64(); err == nil {
        return f
    }
    if d, err := bson.ParseDecimal128(text); err == nil {
        return d
    }
    return text
}

func writeBSONValueAsJSON(buf *bytes.Buffer, value any) error {
    switch v := value.(type) {
    case bson.D:
        buf.WriteByte('{')
        for i, elem := range v {
            if i > 0 {
                buf.WriteByte(',')
            }
            if err := writeJSONKey(buf, elem.Key); err != nil {
                return err
            }
            if err := writeBSONValueAsJSON(buf, elem.Value); err != nil {
                return err
            }
        }
        buf.WriteByte('}')
        return nil
    case bson.M:
        keys := make([]string, 0, len(v))
        for key := range v {
            keys = append(keys, key)
        }
        sort.Strings(keys)
        buf.WriteByte('{')
        for i, key := range keys {
            if i > 0 {
                buf.WriteByte(',')
            }
            if err := writeJSONKey(buf, key); err != nil {
                return err
            }
            if err := writeBSONValueAsJSON(buf, v[key]); err != nil {
                return err
            }
        }
        buf.WriteByte('}')
        return nil
    case bson.A:
        buf.WriteByte('[')
        for i, item := range v {
            if i > 0 {
                buf.WriteByte(',')
            }
            if err := writeBSONValueAsJSON(buf, item); err != nil {
                return err
            }
        }
        buf.WriteByte(']')
        return nil
    case bson.Decimal128:
        text := v.String()
        if !json.Valid([]byte(text)) {
            // NaN and Infinity have no JSON number form
            return writeJSON(buf, text)
        }
        buf.WriteString(text)
        return nil
    default:
        return writeJSON(buf, v)
    }
}

func writeJSONKey(buf *bytes.Buffer, key string) error {
    if err := writeJSON(buf, key); err != nil {
        return err
    }
    buf.WriteByte(':')
    return nil
}

func writeJSON(buf *bytes.Buffer, value any) error {
    data, err := json.Marshal(value)
    if err != nil {
        return err
    }
    buf.Write(data)
    return nil
}
