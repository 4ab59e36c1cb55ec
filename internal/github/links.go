package github

import (
	"net/url"
	"strconv"
	"strings"
)

// lastPage returns the page number of the rel="last" entry of a Link header.
func lastPage(link string) (int, bool) {
	for _, part := range strings.Split(link, ",") {
		segments := strings.Split(strings.TrimSpace(part), ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(segments[0]), "<>")

		isLast := false
		for _, param := range segments[1:] {
			if strings.TrimSpace(param) == `rel="last"` {
				isLast = true
				break
			}
		}
		if !isLast {
			continue
		}

		u, err := url.Parse(target)
		if err != nil {
			return 0, false
		}
		page, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil || page < 1 {
			return 0, false
		}
		return page, true
	}
	return 0, false
}
