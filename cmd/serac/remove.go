package main

import (
	"fmt"

	"grimm.is/serac"
	"grimm.is/serac/internal/logging"
)

// RunRemove removes one filter by runtime ID or by key.
func RunRemove(id uint64, key string) error {
	if (id == 0) == (key == "") {
		return fmt.Errorf("exactly one of --id or --key is required")
	}

	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	if key != "" {
		k, err := serac.ParseGUID(key)
		if err != nil {
			return err
		}
		if err := s.RemoveFilterByKey(k); err != nil {
			return err
		}
		logging.Audit("remove", key, nil)
		fmt.Printf("Removed filter %s\n", key)
		return nil
	}

	if err := s.RemoveFilter(id); err != nil {
		return err
	}
	logging.Audit("remove", fmt.Sprintf("%d", id), nil)
	fmt.Printf("Removed filter %d\n", id)
	return nil
}
