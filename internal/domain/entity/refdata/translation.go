package refdata

// TextField names a translatable text field.
type TextField string

const (
	FieldName        TextField = "name"
	FieldDescription TextField = "description"
)

// Translation holds a localized value of one text field of an entity.
// EntityKey is the entity id for uuid-keyed entities and the ticker for
// instruments.
type Translation struct {
	EntityKey string    `json:"entity_key"`
	Field     TextField `json:"field"`
	Locale    string    `json:"locale"`
	Value     string    `json:"value"`
}
