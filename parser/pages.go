package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/docsign/ir/raw"
	"github.com/wudi/docsign/ir/semantic"
)

type inherited struct {
	resources raw.Object
	mediaBox  raw.Object
	cropBox   raw.Object
	rotate    raw.Object
}

// Pages walks the page tree in document order, applying inherited
// Resources, MediaBox, CropBox and Rotate.
func (d *Document) Pages(ctx context.Context) ([]semantic.Page, error) {
	rootRef, ok := d.raw.Root()
	if !ok {
		return nil, errors.New("trailer has no Root")
	}
	catalog, err := d.DerefDict(ctx, raw.RefObj{R: rootRef})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if catalog == nil {
		return nil, errors.New("catalog is missing")
	}
	treeRef, ok := catalog.Get("Pages").(raw.RefObj)
	if !ok {
		return nil, errors.New("catalog has no page tree reference")
	}
	var pages []semantic.Page
	visited := make(map[raw.ObjectRef]bool)
	if err := d.walk(ctx, treeRef.R, inherited{}, visited, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (d *Document) walk(ctx context.Context, ref raw.ObjectRef, inh inherited, visited map[raw.ObjectRef]bool, out *[]semantic.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if visited[ref] {
		return fmt.Errorf("page tree cycle at %s", ref)
	}
	visited[ref] = true
	if d.limits.MaxPages > 0 && len(*out) >= d.limits.MaxPages {
		return fmt.Errorf("page tree exceeds %d pages", d.limits.MaxPages)
	}
	node, err := d.DerefDict(ctx, raw.RefObj{R: ref})
	if err != nil {
		return fmt.Errorf("page node %s: %w", ref, err)
	}
	if node == nil {
		return fmt.Errorf("page node %s is null", ref)
	}
	if v := node.Get("Resources"); v != nil {
		inh.resources = v
	}
	if v := node.Get("MediaBox"); v != nil {
		inh.mediaBox = v
	}
	if v := node.Get("CropBox"); v != nil {
		inh.cropBox = v
	}
	if v := node.Get("Rotate"); v != nil {
		inh.rotate = v
	}

	typ, _ := node.Name("Type")
	kids, hasKids := node.Get("Kids").(*raw.ArrayObj)
	if typ == "Pages" || (typ == "" && hasKids) {
		if kidsRef, ok := node.Get("Kids").(raw.RefObj); ok {
			obj, err := d.Deref(ctx, kidsRef)
			if err != nil {
				return err
			}
			kids, hasKids = obj.(*raw.ArrayObj)
		}
		if !hasKids {
			return fmt.Errorf("page tree node %s has no Kids", ref)
		}
		for _, kid := range kids.Items {
			kref, ok := kid.(raw.RefObj)
			if !ok {
				return fmt.Errorf("page tree node %s has a direct kid", ref)
			}
			if err := d.walk(ctx, kref.R, inh, visited, out); err != nil {
				return err
			}
		}
		return nil
	}

	page := semantic.Page{Index: len(*out), Ref: ref, Dict: node, MediaBox: semantic.LetterSize}
	if box, err := d.rect(ctx, inh.mediaBox); err == nil && box != nil {
		page.MediaBox = *box
	}
	if box, err := d.rect(ctx, inh.cropBox); err == nil && box != nil {
		page.CropBox = box
	}
	if inh.rotate != nil {
		if v, err := d.Deref(ctx, inh.rotate); err == nil {
			if n, ok := v.(raw.NumberObj); ok {
				page.Rotate = int(n.Int())
			}
		}
	}
	res, err := d.DerefDict(ctx, inh.resources)
	if err != nil {
		return fmt.Errorf("page %d resources: %w", page.Index+1, err)
	}
	page.Resources = res
	*out = append(*out, page)
	return nil
}

func (d *Document) rect(ctx context.Context, obj raw.Object) (*semantic.Rectangle, error) {
	if obj == nil {
		return nil, nil
	}
	v, err := d.Deref(ctx, obj)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok || len(arr.Items) != 4 {
		return nil, errors.New("invalid rectangle")
	}
	var vals [4]float64
	for i, item := range arr.Items {
		item, err = d.Deref(ctx, item)
		if err != nil {
			return nil, err
		}
		f, ok := raw.Float(item)
		if !ok {
			return nil, errors.New("invalid rectangle value")
		}
		vals[i] = f
	}
	r := semantic.Rectangle{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}.Normalize()
	return &r, nil
}
