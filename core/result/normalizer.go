package result

// Normalize converts validated rows into a Set sorted by index.
func Normalize(rows []RawRow) Set {
	set := make(Set, 0, len(rows))
	for _, row := range rows {
		mark, _ := parseMark(row[MarkColumn])
		set = append(set, Record{Index: row[IndexColumn], Mark: int(mark)})
	}
	set.sort()
	return set
}
