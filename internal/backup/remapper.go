package backup

import "github.com/google/uuid"

// Remapper - таблица соответствия идентификаторов снимка новым "живым"
// идентификаторам. Создается заново на каждое восстановление и не должна
// разделяться между горутинами.
type Remapper struct {
	ids map[string]string
}

// NewRemapper создает пустую таблицу переназначения.
func NewRemapper() *Remapper {
	return &Remapper{ids: make(map[string]string)}
}

// Assign запоминает соответствие старого идентификатора новому.
func (r *Remapper) Assign(oldID, newID string) {
	r.ids[oldID] = newID
}

// Resolve возвращает новый идентификатор для oldID. Если соответствие
// не было записано, генерируется свежий идентификатор (без сохранения
// в таблице): висячая ссылка никогда не прерывает восстановление.
func (r *Remapper) Resolve(oldID string) string {
	if newID, ok := r.ids[oldID]; ok {
		return newID
	}
	return uuid.NewString()
}

// Contains сообщает, записано ли соответствие для oldID.
func (r *Remapper) Contains(oldID string) bool {
	_, ok := r.ids[oldID]
	return ok
}

// Reset полностью очищает таблицу.
func (r *Remapper) Reset() {
	r.ids = make(map[string]string)
}
