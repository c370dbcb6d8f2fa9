package pathway

import (
	"strconv"
	"strings"
)

// nextSlot picks the rotation slot for the next auto-save given the existing
// auto-save files. Free slots are filled lowest first; once every slot is
// taken the slot of the least recently modified file is reused.
func nextSlot(autoSaves []File, slots int, ext string) int {
	if len(autoSaves) == 0 {
		return 1
	}
	if len(autoSaves) < slots {
		used := make(map[int]struct{}, len(autoSaves))
		for _, f := range autoSaves {
			used[parseSlot(f.Name, ext)] = struct{}{}
		}
		for slot := 1; slot <= slots; slot++ {
			if _, ok := used[slot]; !ok {
				return slot
			}
		}
		return 1
	}

	// Only files holding a slot inside [1, slots] can be evicted. A file whose
	// name does not parse, or whose slot is beyond a since-reduced slot count,
	// is left alone instead of colliding with slot 1.
	oldest := -1
	for i, f := range autoSaves {
		slot := parseSlot(f.Name, ext)
		if slot < 1 || slot > slots {
			continue
		}
		if oldest < 0 || olderThan(f, autoSaves[oldest], ext) {
			oldest = i
		}
	}
	if oldest < 0 {
		return 1
	}
	return parseSlot(autoSaves[oldest].Name, ext)
}

func olderThan(a, b File, ext string) bool {
	if a.ModTime.Equal(b.ModTime) {
		return parseSlot(a.Name, ext) < parseSlot(b.Name, ext)
	}
	return a.ModTime.Before(b.ModTime)
}

// parseSlot reads the integer after the last '_' of the file name, extension
// excluded. Anything unparseable is slot 0.
func parseSlot(name, ext string) int {
	base := strings.TrimSuffix(name, "."+ext)
	i := strings.LastIndex(base, "_")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
