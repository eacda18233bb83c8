package notify

import "fmt"

// plural выбирает форму слова по числу: 1 запись, 2 записи, 5 записей
func plural(count int, one, few, many string) string {
	if count%10 == 1 && count%100 != 11 {
		return one
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return few
	}
	return many
}

// PluralizeBookings "3 записи"
func PluralizeBookings(count int) string {
	return fmt.Sprintf("%d %s", count, plural(count, "запись", "записи", "записей"))
}
